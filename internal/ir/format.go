package ir

import (
	"fmt"
	"strings"
)

// Dump renders m as a readable textual listing. It exists for -dump-ir
// debugging output, not as a parseable exchange format.
func Dump(m *Module) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "; module %s\n", m.Name)
	for _, g := range m.Globals {
		fmt.Fprintf(&sb, "@%s = %s global", g.Name, g.Linkage)
		if g.Constant {
			sb.WriteString(" constant")
		}
		if g.HasInit {
			fmt.Fprintf(&sb, " [%d x i8]", len(g.Data))
		}
		sb.WriteByte('\n')
	}
	for _, fn := range m.Functions {
		dumpFunction(&sb, fn)
	}
	return sb.String()
}

func dumpFunction(sb *strings.Builder, fn *Function) {
	params := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = fmt.Sprintf("%%%d:%s", p.ID, p.Type)
	}
	fmt.Fprintf(sb, "\nfunc %s(%s) %s {\n", fn.Name, strings.Join(params, ", "), fn.Return)
	if fn.Declaration {
		sb.WriteString("  ; declaration\n}\n")
		return
	}
	for _, blk := range fn.Blocks {
		dumpBlock(sb, blk)
	}
	sb.WriteString("}\n")
}

func dumpBlock(sb *strings.Builder, blk *Block) {
	fmt.Fprintf(sb, "%s: ; id=%d\n", blockLabel(blk), blk.ID)
	for _, instr := range blk.Instrs {
		fmt.Fprintf(sb, "  %s\n", dumpInstr(instr))
	}
	fmt.Fprintf(sb, "  %s\n", dumpTerm(blk.Term))
}

func blockLabel(blk *Block) string {
	if blk.Name != "" {
		return blk.Name
	}
	return fmt.Sprintf("bb%d", blk.ID)
}

func dumpInstr(instr Instr) string {
	res := ""
	if instr.Result() != InvalidValue {
		res = fmt.Sprintf("%%%d = ", instr.Result())
	}
	switch v := instr.(type) {
	case *ConstInt:
		return fmt.Sprintf("%sconst %s %d", res, v.Type, v.Value)
	case *GlobalAddr:
		return fmt.Sprintf("%sglobaladdr @%s", res, v.Name)
	case *Undef:
		return fmt.Sprintf("%sundef %s", res, v.Type)
	case *Alloca:
		return fmt.Sprintf("%salloca %s ; %s", res, v.ElemType, v.Name)
	case *Load:
		return fmt.Sprintf("%sload %s, ptr %%%d", res, v.Type, v.Addr)
	case *Store:
		return fmt.Sprintf("store %%%d, ptr %%%d", v.Value, v.Addr)
	case *GEP:
		return fmt.Sprintf("%sgep %%%d, %%%d, %d", res, v.Base, v.Index, v.ElemSize)
	case *BitCast:
		return fmt.Sprintf("%sbitcast %s %%%d", res, v.Type, v.Value)
	case *Binary:
		return fmt.Sprintf("%s%s %s %%%d, %%%d", res, v.Op, v.Type, v.LHS, v.RHS)
	case *ICmp:
		return fmt.Sprintf("%sicmp %%%d, %%%d", res, v.LHS, v.RHS)
	case *Select:
		return fmt.Sprintf("%sselect %%%d, %%%d, %%%d", res, v.Cond, v.True, v.False)
	case *Call:
		return fmt.Sprintf("%scall %s(%v)", res, v.Callee, v.Args)
	case *Phi:
		return fmt.Sprintf("%sphi %s %v", res, v.Type, v.Incoming)
	default:
		return fmt.Sprintf("%s<unknown instr>", res)
	}
}

func dumpTerm(term Term) string {
	switch v := term.(type) {
	case nil:
		return "<no terminator>"
	case *Ret:
		if v.HasValue {
			return fmt.Sprintf("ret %%%d", v.Value)
		}
		return "ret"
	case *Br:
		return fmt.Sprintf("br bb%d", v.Target)
	case *CondBr:
		return fmt.Sprintf("condbr %%%d, bb%d, bb%d", v.Cond, v.Then, v.Else)
	case *Switch:
		return fmt.Sprintf("switch %%%d, default bb%d, cases=%v", v.Cond, v.Default, v.Cases)
	case *Unreachable:
		return "unreachable"
	case *IndirectBr:
		return fmt.Sprintf("indirectbr %%%d, %v", v.Addr, v.Possible)
	default:
		return "<unknown terminator>"
	}
}
