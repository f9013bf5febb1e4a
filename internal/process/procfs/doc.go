// Package procfs finds and reads real processes through Linux /proc.
//
// Enumeration walks /proc/<pid>/comm and /proc/<pid>/exe. Start times come
// from /proc/<pid>/stat, module bases from /proc/<pid>/maps, and memory is
// read with process_vm_readv(2). On other platforms Find returns
// process.ErrUnsupported.
package procfs
