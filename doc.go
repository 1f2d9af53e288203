// Package wasmproc is the facade that wires the Engine Singleton, JIT
// Engine, Instance Linker, and the four host capabilities into a runnable
// process host: Runtime.Compile parses and JIT-compiles a module, and
// Runtime.Spawn instantiates it as a fresh Process, recursively supplying
// capability/process's SpawnFunc so a guest can spawn further processes
// from the same Runtime without either package importing the other.
package wasmproc
