package cfg

import (
	"fmt"
	"go/constant"
	"go/token"
	"go/types"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/tools/go/ssa"
)

// FromSSA lowers an SSA function to a graph. Every SSA block becomes a
// normal block, in index order. Phi nodes are lowered to assignments on the
// incoming edges, introducing edge blocks when the predecessor branches.
func FromSSA(fn *ssa.Function) (*Graph, error) {
	return lowerFunction(fn, nil)
}

type fieldKey struct {
	typ string
	idx int
}

type lowering struct {
	fn     *ssa.Function
	b      *Builder
	blocks map[*ssa.BasicBlock]*Block
	regs   map[ssa.Value]*Var
	cells  map[*ssa.Alloc]*Var
	fields map[fieldKey]*Var
	free   map[*ssa.FreeVar]Symbol
	// conditions inlined into the branch value of their block.
	inlined map[ssa.Instruction]bool
	defers  []*ssa.Defer
	// armed holds a flag for every defer that does not run on all paths
	// to a return. The flag is set when the defer statement executes.
	armed   map[*ssa.Defer]*Var
}

// Package level variables share their symbols across functions.
var globals = struct {
	sync.Mutex
	syms map[*ssa.Global]*Var
}{syms: make(map[*ssa.Global]*Var)}

func lowerFunction(fn *ssa.Function, free map[*ssa.FreeVar]Symbol) (g *Graph, err error) {
	if fn == nil {
		return nil, errors.Wrap(ErrUnavailable, "nil function")
	}
	if len(fn.Blocks) == 0 {
		return nil, errors.Wrapf(ErrUnavailable, "%s has no body", fn)
	}

	defer func() {
		if r := recover(); r != nil {
			g, err = nil, errors.Wrapf(ErrUnavailable, "%s: %v", fn, r)
		}
	}()

	l := &lowering{
		fn:      fn,
		b:       NewBuilder(fn.String()),
		blocks:  make(map[*ssa.BasicBlock]*Block),
		regs:    make(map[ssa.Value]*Var),
		cells:   make(map[*ssa.Alloc]*Var),
		fields:  make(map[fieldKey]*Var),
		free:    free,
		inlined: make(map[ssa.Instruction]bool),
		armed:   make(map[*ssa.Defer]*Var),
	}
	if fn.Prog != nil {
		l.b.SetFileSet(fn.Prog.Fset)
	}
	for _, sym := range free {
		l.b.Capture(sym)
	}

	var runs []*ssa.BasicBlock
	for _, blk := range fn.Blocks {
		l.blocks[blk] = l.b.Block()
		for _, instr := range blk.Instrs {
			switch instr := instr.(type) {
			case *ssa.Defer:
				l.defers = append(l.defers, instr)
			case *ssa.RunDefers:
				runs = append(runs, blk)
			}
		}
	}
	for i, d := range l.defers {
		for _, run := range runs {
			if !d.Block().Dominates(run) {
				l.armed[d] = NewVar(fmt.Sprintf("defer$%d", i), SymbolLocal)
				break
			}
		}
	}

	for _, blk := range fn.Blocks {
		l.lowerBlock(blk)
	}
	return l.b.Build()
}

func (l *lowering) lowerBlock(blk *ssa.BasicBlock) {
	cur := l.blocks[blk]
	if blk.Index == 0 {
		for _, d := range l.defers {
			if flag, ok := l.armed[d]; ok {
				l.b.Add(cur, &Assignment{Target: &LocalReference{Local: flag}, Value: &Literal{Value: false}})
			}
		}
	}

	if n := len(blk.Instrs); n > 0 {
		if ifInstr, ok := blk.Instrs[n-1].(*ssa.If); ok {
			l.markInlinable(blk, ifInstr)
		}
	}

	for _, instr := range blk.Instrs {
		if l.inlined[instr] {
			continue
		}

		switch instr := instr.(type) {
		case *ssa.If:
			cond := l.condition(instr.Cond)
			l.b.Branch(cur, cond, l.edge(blk, 0), l.edge(blk, 1))
		case *ssa.Jump:
			l.addPhiMoves(cur, blk, blk.Succs[0])
			l.b.Jump(cur, l.blocks[blk.Succs[0]], Regular)
		case *ssa.Return:
			ret := &Return{}
			switch len(instr.Results) {
			case 0:
			case 1:
				ret.Value = l.value(instr.Results[0])
			default:
				ops := make([]Operation, len(instr.Results))
				for i, res := range instr.Results {
					ops[i] = l.value(res)
				}
				ret.Value = &Unknown{Text: "tuple", Operands: ops}
			}
			ret.SetPos(instr.Pos())
			l.b.Add(cur, ret)
			l.b.Return(cur)
		case *ssa.Panic:
			th := &Throw{Exception: l.value(instr.X)}
			th.SetPos(instr.Pos())
			l.b.Add(cur, th)
			l.b.Throw(cur)
		case *ssa.Defer:
			op := &Unknown{Text: "defer " + instr.Call.String()}
			op.SetPos(instr.Pos())
			l.b.Add(cur, op)
			if flag, ok := l.armed[instr]; ok {
				asg := &Assignment{Target: &LocalReference{Local: flag}, Value: &Literal{Value: true}}
				asg.SetPos(instr.Pos())
				l.b.Add(cur, asg)
			}
		case *ssa.RunDefers:
			cur = l.runDefers(cur, blk)
		default:
			if op := l.instruction(instr); op != nil {
				l.b.Add(cur, op)
			}
		}
	}
}

// runDefers emits the deferred calls in reverse order of appearance. A call
// whose defer statement may not have executed is guarded by its flag, so
// cur is split and the block holding the rest of blk is returned.
func (l *lowering) runDefers(cur *Block, blk *ssa.BasicBlock) *Block {
	for i := len(l.defers) - 1; i >= 0; i-- {
		d := l.defers[i]
		call := l.call(&d.Call)
		call.SetPos(d.Pos())

		flag, ok := l.armed[d]
		if !ok || d.Block().Dominates(blk) {
			l.b.Add(cur, call)
			continue
		}

		then, next := l.b.Block(), l.b.Block()
		l.b.Branch(cur, &LocalReference{Local: flag}, then, next)
		l.b.Add(then, call)
		l.b.Jump(then, next, Regular)
		cur = next
	}
	return cur
}

// markInlinable inlines a comparison or negation used only by the branch.
func (l *lowering) markInlinable(blk *ssa.BasicBlock, ifInstr *ssa.If) {
	instr, ok := ifInstr.Cond.(ssa.Instruction)
	if !ok || instr.Block() != blk {
		return
	}
	switch cond := ifInstr.Cond.(type) {
	case *ssa.BinOp:
		if _, ok := binaryOps[cond.Op]; !ok {
			return
		}
	case *ssa.UnOp:
		if cond.Op != token.NOT {
			return
		}
	default:
		return
	}

	if refs := ifInstr.Cond.Referrers(); refs != nil && len(*refs) == 1 {
		l.inlined[instr] = true
	}
}

func (l *lowering) condition(cond ssa.Value) Operation {
	if instr, ok := cond.(ssa.Instruction); ok && l.inlined[instr] {
		return l.expression(cond)
	}
	return l.value(cond)
}

// edge returns the destination of the i-th successor edge of blk, creating
// an edge block holding phi moves when needed.
func (l *lowering) edge(blk *ssa.BasicBlock, i int) *Block {
	succ := blk.Succs[i]
	if !hasPhis(succ) {
		return l.blocks[succ]
	}

	mid := l.b.Block()
	l.addPhiMoves(mid, blk, succ)
	l.b.Jump(mid, l.blocks[succ], Regular)
	return mid
}

func hasPhis(blk *ssa.BasicBlock) bool {
	if len(blk.Instrs) == 0 {
		return false
	}
	_, ok := blk.Instrs[0].(*ssa.Phi)
	return ok
}

func (l *lowering) addPhiMoves(cur *Block, pred, succ *ssa.BasicBlock) {
	idx := -1
	for i, p := range succ.Preds {
		if p == pred {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}

	for _, instr := range succ.Instrs {
		phi, ok := instr.(*ssa.Phi)
		if !ok {
			break
		}
		asg := &Assignment{
			Target: &LocalReference{Local: l.reg(phi)},
			Value:  l.value(phi.Edges[idx]),
		}
		asg.SetPos(phi.Pos())
		l.b.Add(cur, asg)
	}
}

var binaryOps = map[token.Token]BinaryOp{
	token.EQL: Equal,
	token.NEQ: NotEqual,
	token.LSS: Less,
	token.LEQ: LessEqual,
	token.GTR: Greater,
	token.GEQ: GreaterEqual,
	token.ADD: Add,
	token.SUB: Subtract,
	token.MUL: Multiply,
	token.QUO: Divide,
}

// instruction lowers a non-terminating instruction. Instructions defining
// a register are lowered to an assignment of that register.
func (l *lowering) instruction(instr ssa.Instruction) Operation {
	var op Operation
	switch instr := instr.(type) {
	case *ssa.Phi, *ssa.DebugRef:
		return nil
	case *ssa.Alloc:
		op = &Assignment{
			Target: &LocalReference{Local: l.cell(instr)},
			Value:  zeroValue(deref(instr.Type())),
		}
	case *ssa.Store:
		op = &Assignment{Target: l.place(instr.Addr), Value: l.value(instr.Val)}
	case *ssa.Call:
		call := l.call(instr.Common())
		if isVoid(instr.Type()) {
			op = call
		} else {
			op = l.assign(instr, call)
		}
	case ssa.Value:
		op = l.assign(instr, l.expression(instr))
	default:
		op = &Unknown{Text: instr.String(), Operands: l.operands(instr)}
	}

	if setter, ok := op.(interface{ SetPos(token.Pos) }); ok {
		setter.SetPos(instr.Pos())
	}
	return op
}

func (l *lowering) assign(v ssa.Value, op Operation) Operation {
	return &Assignment{Target: &LocalReference{Local: l.reg(v)}, Value: op}
}

// expression lowers the right-hand side of a register definition.
func (l *lowering) expression(v ssa.Value) Operation {
	var op Operation
	switch v := v.(type) {
	case *ssa.BinOp:
		if bop, ok := binaryOps[v.Op]; ok {
			op = &Binary{Op: bop, Left: l.value(v.X), Right: l.value(v.Y)}
		} else {
			op = &Unknown{Text: v.Op.String(), Operands: []Operation{l.value(v.X), l.value(v.Y)}}
		}
	case *ssa.UnOp:
		switch v.Op {
		case token.NOT:
			op = &Unary{Op: Not, Operand: l.value(v.X)}
		case token.SUB:
			op = &Unary{Op: Negate, Operand: l.value(v.X)}
		case token.MUL:
			op = l.place(v.X)
		default:
			op = &Unknown{Text: v.Op.String(), Operands: []Operation{l.value(v.X)}}
		}
	case *ssa.Convert:
		op = &Conversion{Operand: l.value(v.X)}
	case *ssa.ChangeType:
		op = &Conversion{Operand: l.value(v.X), Implicit: true}
	case *ssa.MakeInterface:
		op = &Conversion{Operand: l.value(v.X), Implicit: true}
	case *ssa.ChangeInterface:
		op = &Conversion{Operand: l.value(v.X), Implicit: true}
	case *ssa.MakeClosure:
		op = l.closure(v)
	case *ssa.MakeSlice:
		count := -1
		if c, ok := v.Len.(*ssa.Const); ok && c.Value != nil && c.Value.Kind() == constant.Int {
			if n, exact := constant.Int64Val(c.Value); exact {
				count = int(n)
			}
		}
		op = &CollectionCreation{Count: count}
	case *ssa.MakeMap:
		op = &CollectionCreation{Count: 0}
	case *ssa.MakeChan:
		op = &ObjectCreation{Type: v.Type().String()}
	case *ssa.FieldAddr, *ssa.IndexAddr:
		op = l.place(v)
	case *ssa.Field:
		op = &FieldReference{Instance: l.value(v.X), Field: l.field(v.X.Type().String(), v.Field, fieldName(v.X.Type(), v.Field))}
	default:
		unknown := &Unknown{Text: opcode(v)}
		if instr, ok := v.(ssa.Instruction); ok {
			unknown.Operands = l.operands(instr)
		}
		op = unknown
	}

	if setter, ok := op.(interface{ SetPos(token.Pos) }); ok {
		setter.SetPos(v.Pos())
	}
	return op
}

// value returns the operation reading an SSA value.
func (l *lowering) value(v ssa.Value) Operation {
	switch v := v.(type) {
	case *ssa.Const:
		return constLiteral(v)
	case *ssa.Parameter:
		return &ParameterReference{Parameter: l.reg(v)}
	case *ssa.FreeVar:
		if sym, ok := l.free[v]; ok {
			return &LocalReference{Local: sym}
		}
		return &LocalReference{Local: l.reg(v)}
	case *ssa.Alloc:
		return &LocalReference{Local: l.cell(v)}
	case *ssa.Global:
		return &FieldReference{Field: global(v)}
	case *ssa.Function:
		return &Unknown{Text: "func " + v.Name()}
	case *ssa.Builtin:
		return &Unknown{Text: "builtin " + v.Name()}
	}
	return &LocalReference{Local: l.reg(v)}
}

// place returns the operation designating the variable at an address.
func (l *lowering) place(addr ssa.Value) Operation {
	switch addr := addr.(type) {
	case *ssa.Alloc:
		return &LocalReference{Local: l.cell(addr)}
	case *ssa.Global:
		return &FieldReference{Field: global(addr)}
	case *ssa.FreeVar:
		// Captured variables are shared with the enclosing function.
		if sym, ok := l.free[addr]; ok {
			return &LocalReference{Local: sym}
		}
	case *ssa.FieldAddr:
		ref := &FieldReference{
			Instance: l.value(addr.X),
			Field:    l.field(addr.X.Type().String(), addr.Field, fieldName(deref(addr.X.Type()), addr.Field)),
		}
		ref.SetPos(addr.Pos())
		return ref
	}
	return &FieldReference{Instance: l.value(addr), Field: l.field(addr.Type().String(), -1, "*")}
}

func (l *lowering) call(common *ssa.CallCommon) *Invocation {
	inv := &Invocation{}
	args := common.Args

	switch callee := common.Value.(type) {
	case *ssa.Function:
		inv.Method = callee.Name()
		if callee.Signature.Recv() != nil && len(args) > 0 {
			inv.Receiver = l.value(args[0])
			args = args[1:]
		}
	case *ssa.Builtin:
		inv.Method = callee.Name()
	default:
		if common.IsInvoke() {
			inv.Method = common.Method.Name()
			inv.Receiver = l.value(common.Value)
		} else {
			inv.Receiver = l.value(common.Value)
		}
	}

	for _, arg := range args {
		inv.Args = append(inv.Args, l.value(arg))
	}
	inv.SetPos(common.Pos())
	return inv
}

func (l *lowering) closure(mc *ssa.MakeClosure) Operation {
	fn, ok := mc.Fn.(*ssa.Function)
	if !ok {
		return &Unknown{Text: "closure"}
	}

	free := make(map[*ssa.FreeVar]Symbol, len(fn.FreeVars))
	for i, fv := range fn.FreeVars {
		if i >= len(mc.Bindings) {
			break
		}
		if sym, ok := ReferencedSymbol(l.value(mc.Bindings[i])); ok {
			free[fv] = sym
			l.b.Capture(sym)
		}
	}

	return &AnonymousFunction{
		Symbol: NewVar(fn.Name(), SymbolFunction),
		Body: func(*Graph) (*Graph, error) {
			return lowerFunction(fn, free)
		},
	}
}

func (l *lowering) operands(instr ssa.Instruction) (res []Operation) {
	for _, v := range instr.Operands(nil) {
		if v != nil && *v != nil {
			res = append(res, l.value(*v))
		}
	}
	return
}

func (l *lowering) reg(v ssa.Value) *Var {
	if sym, ok := l.regs[v]; ok {
		return sym
	}

	kind := SymbolLocal
	if _, ok := v.(*ssa.Parameter); ok {
		kind = SymbolParameter
	}
	sym := NewVar(v.Name(), kind)
	l.regs[v] = sym
	return sym
}

func (l *lowering) cell(a *ssa.Alloc) *Var {
	if sym, ok := l.cells[a]; ok {
		return sym
	}

	name := a.Comment
	if name == "" {
		name = a.Name()
	}
	sym := NewVar(name, SymbolLocal)
	l.cells[a] = sym
	return sym
}

func (l *lowering) field(typ string, idx int, name string) *Var {
	key := fieldKey{typ, idx}
	if sym, ok := l.fields[key]; ok {
		return sym
	}
	sym := NewVar(name, SymbolField)
	l.fields[key] = sym
	return sym
}

func global(g *ssa.Global) *Var {
	globals.Lock()
	defer globals.Unlock()

	if sym, ok := globals.syms[g]; ok {
		return sym
	}
	sym := NewVar(g.Name(), SymbolField)
	globals.syms[g] = sym
	return sym
}

func constLiteral(c *ssa.Const) Operation {
	lit := &Literal{}
	lit.SetPos(c.Pos())
	if c.Value == nil {
		return lit
	}

	switch c.Value.Kind() {
	case constant.Bool:
		lit.Value = constant.BoolVal(c.Value)
	case constant.Int:
		if n, exact := constant.Int64Val(c.Value); exact {
			lit.Value = n
		} else {
			return &Unknown{Text: c.Value.ExactString()}
		}
	case constant.Float:
		f, _ := constant.Float64Val(c.Value)
		lit.Value = f
	case constant.String:
		lit.Value = constant.StringVal(c.Value)
	default:
		return &Unknown{Text: c.Value.ExactString()}
	}
	return lit
}

// zeroValue is the operation producing the zero value of a type.
func zeroValue(t types.Type) Operation {
	switch u := t.Underlying().(type) {
	case *types.Pointer, *types.Interface, *types.Map, *types.Slice, *types.Chan, *types.Signature:
		return &Literal{}
	case *types.Basic:
		switch {
		case u.Info()&types.IsBoolean != 0:
			return &Literal{Value: false}
		case u.Info()&types.IsInteger != 0:
			return &Literal{Value: int64(0)}
		case u.Info()&types.IsString != 0:
			return &Literal{Value: ""}
		}
	}
	return &ObjectCreation{Type: t.String()}
}

func deref(t types.Type) types.Type {
	if p, ok := t.Underlying().(*types.Pointer); ok {
		return p.Elem()
	}
	return t
}

func fieldName(t types.Type, idx int) string {
	if s, ok := t.Underlying().(*types.Struct); ok && idx < s.NumFields() {
		return s.Field(idx).Name()
	}
	return fmt.Sprintf("field%d", idx)
}

func isVoid(t types.Type) bool {
	tuple, ok := t.(*types.Tuple)
	return ok && tuple.Len() == 0
}

func opcode(v ssa.Value) string {
	return fmt.Sprintf("%T", v)[len("*ssa."):]
}
