// Package script holds the callable surface of an auto-splitter script: the
// fixed set of method names, the immutable method table, the per-call
// execution context and the tagged optional each call returns.
//
// Method bodies are opaque. LoadLua builds a MethodTable from a Lua chunk;
// tests build tables directly from Go funcs with NewMethodTable.
package script
