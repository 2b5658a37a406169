package process

import (
	"fmt"
	"strconv"

	"github.com/arctir/procsim/internal/clock"
	"github.com/arctir/procsim/internal/instruction"
)

// executeLocked applies one instruction's effect. Caller holds p.mu.
func (p *Process) executeLocked(mem MemoryAccessor, ins instruction.Instruction) (logLine string, violation bool) {
	ts := clock.Timestamp()
	prefix := fmt.Sprintf("(%s) Core:%d %s", ts, p.core, describeLocked(ins))

	switch ins.Kind {
	case instruction.Declare:
		mem.DeclareVariable(p.pid, ins.DeclVar, ins.DeclValue)
		return prefix + fmt.Sprintf(" -> Declared %s = %d", ins.DeclVar, ins.DeclValue), false

	case instruction.Add:
		a := p.resolveOperand(mem, ins.SrcA)
		b := p.resolveOperand(mem, ins.SrcB)
		result := saturatingAdd(a, b)
		mem.SetVariable(p.pid, ins.Dst, result)
		return prefix + fmt.Sprintf(" -> %s = %d + %d = %d", ins.Dst, a, b, result), false

	case instruction.Sub:
		a := p.resolveOperand(mem, ins.SrcA)
		b := p.resolveOperand(mem, ins.SrcB)
		result := saturatingSub(a, b)
		mem.SetVariable(p.pid, ins.Dst, result)
		return prefix + fmt.Sprintf(" -> %s = %d - %d = %d", ins.Dst, a, b, result), false

	case instruction.Print:
		if ins.PrintVar != "" {
			v := mem.GetVariable(p.pid, ins.PrintVar)
			return prefix + fmt.Sprintf(" -> OUTPUT: %s%d", ins.Message, v), false
		}
		return prefix + " -> OUTPUT: " + ins.Message, false

	case instruction.Sleep:
		p.sleepRemaining = int(ins.SleepTicks)
		p.state = Waiting
		return prefix + fmt.Sprintf(" -> Sleeping for %d CPU ticks", ins.SleepTicks), false

	case instruction.For:
		return prefix + fmt.Sprintf(" -> Entering FOR loop (%d iterations)", ins.Repeats), false

	case instruction.Read:
		_, ok := mem.ReadMemory(p.pid, ins.Address)
		if !ok && uint64(ins.Address) < p.allocatedBytes {
			return prefix + fmt.Sprintf(" -> invalid access at 0x%s", hexAddr(ins.Address)), false
		}
		if !ok {
			p.recordViolationLocked(ins.Address, ts)
			return prefix + fmt.Sprintf(" -> memory access violation at 0x%s", hexAddr(ins.Address)), true
		}
		return prefix + fmt.Sprintf(" -> READ 0x%s", hexAddr(ins.Address)), false

	case instruction.Write:
		v := p.resolveOperand(mem, ins.WriteValue)
		ok := mem.WriteMemory(p.pid, ins.Address, v)
		if !ok && uint64(ins.Address) < p.allocatedBytes {
			return prefix + fmt.Sprintf(" -> invalid access at 0x%s", hexAddr(ins.Address)), false
		}
		if !ok {
			p.recordViolationLocked(ins.Address, ts)
			return prefix + fmt.Sprintf(" -> memory access violation at 0x%s", hexAddr(ins.Address)), true
		}
		return prefix + fmt.Sprintf(" -> WRITE %d to 0x%s", v, hexAddr(ins.Address)), false

	default:
		return prefix + " -> unknown instruction", false
	}
}

func (p *Process) resolveOperand(mem MemoryAccessor, op instruction.Operand) uint16 {
	if !op.IsVar {
		return op.Immediate
	}
	return mem.GetVariable(p.pid, op.Var)
}

func (p *Process) recordViolationLocked(address uint32, ts string) {
	p.violationOccurred = true
	p.violationAddress = address
	p.violationTimestamp = ts
}

// saturatingAdd adds two 16-bit values, clamping at 0xFFFF.
func saturatingAdd(a, b uint16) uint16 {
	sum := uint32(a) + uint32(b)
	if sum > 0xFFFF {
		return 0xFFFF
	}
	return uint16(sum)
}

// saturatingSub subtracts two 16-bit values, clamping at 0.
func saturatingSub(a, b uint16) uint16 {
	if b >= a {
		return 0
	}
	return a - b
}

func hexAddr(addr uint32) string {
	return strconv.FormatUint(uint64(addr), 16)
}

func describeLocked(ins instruction.Instruction) string {
	switch ins.Kind {
	case instruction.Declare:
		return fmt.Sprintf("DECLARE(%s, %d)", ins.DeclVar, ins.DeclValue)
	case instruction.Add:
		return fmt.Sprintf("ADD(%s, %s, %s)", ins.Dst, operandText(ins.SrcA), operandText(ins.SrcB))
	case instruction.Sub:
		return fmt.Sprintf("SUBTRACT(%s, %s, %s)", ins.Dst, operandText(ins.SrcA), operandText(ins.SrcB))
	case instruction.Print:
		return fmt.Sprintf("PRINT(%q)", ins.Message)
	case instruction.Sleep:
		return fmt.Sprintf("SLEEP(%d)", ins.SleepTicks)
	case instruction.For:
		return fmt.Sprintf("FOR(%d)", ins.Repeats)
	case instruction.Read:
		return "READ 0x" + hexAddr(ins.Address)
	case instruction.Write:
		return "WRITE 0x" + hexAddr(ins.Address)
	default:
		return "UNKNOWN"
	}
}

func operandText(op instruction.Operand) string {
	if op.IsVar {
		return op.Var
	}
	return strconv.FormatUint(uint64(op.Immediate), 10)
}
