// Package bytecode implements the compiled form of ember scripts and the
// machine that runs them: the opcode set, the chunk container with its
// deduplicated constant and name pools, the AST-to-bytecode compiler, and
// a stack-based virtual machine with hard resource limits.
//
// The pipeline is compiler.Parse -> Compile -> VM.Execute. A chunk is
// immutable once compiled and carries everything needed to run it; the VM
// holds no state across executions, so persistent script variables live
// in a Context that the host keeps per session. Anything a script cannot
// express as a pure stack operation goes through the HostCaller boundary.
package bytecode
