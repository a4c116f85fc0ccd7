package loader

import "golang.org/x/arch/x86/x86asm"

// decodeOne decodes the single 32-bit-mode instruction at the start
// of code and renders its Intel-syntax mnemonic. It is a one-shot
// sanity check logged after an ELF load, per SPEC_FULL.md's domain
// stack wiring for golang.org/x/arch/x86/x86asm — not the x86
// disassembler subsystem itself, which remains the out-of-scope
// external collaborator named in spec.md §1.
func decodeOne(code []uint8) (string, int) {
	inst, err := x86asm.Decode(code, 32)
	if err != nil {
		return "", 0
	}
	return x86asm.IntelSyntax(inst, 0, nil), inst.Len
}
