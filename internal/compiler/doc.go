// Package compiler turns CUE state-descriptor definitions into
// state.Descriptor values.
//
// A definition file declares, per process, a list of versioned layouts:
//
//	state: "game.exe": [
//		{version: "", pointer_size: 8, fields: {
//			level:   {type: "int", base: 0x1000, offsets: [0x10]}
//			loading: {type: "bool", module: "engine.dll", base: 0x2000}
//		}},
//	]
//
// Compilation is two-phase: CompileDescriptors parses CUE into
// DescriptorSpec values with source positions, Validate checks them all
// without failing fast, and Build produces a state.Registry.
package compiler
