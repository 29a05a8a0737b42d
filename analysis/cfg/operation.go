package cfg

import (
	"fmt"
	"go/token"
	"strings"
)

// OpKind tags the closed set of operation categories.
type OpKind int

const (
	OpUnknown OpKind = iota
	OpLiteral
	OpLocalReference
	OpParameterReference
	OpFieldReference
	OpAssignment
	OpInvocation
	OpConversion
	OpFlowCapture
	OpFlowCaptureReference
	OpBinary
	OpUnary
	OpLogical
	OpIsNull
	OpObjectCreation
	OpCollectionCreation
	OpThrow
	OpAnonymousFunction
	OpLocalFunction
	OpReturn
)

var opKindNames = [...]string{
	OpUnknown:              "Unknown",
	OpLiteral:              "Literal",
	OpLocalReference:       "LocalReference",
	OpParameterReference:   "ParameterReference",
	OpFieldReference:       "FieldReference",
	OpAssignment:           "Assignment",
	OpInvocation:           "Invocation",
	OpConversion:           "Conversion",
	OpFlowCapture:          "FlowCapture",
	OpFlowCaptureReference: "FlowCaptureReference",
	OpBinary:               "Binary",
	OpUnary:                "Unary",
	OpLogical:              "Logical",
	OpIsNull:               "IsNull",
	OpObjectCreation:       "ObjectCreation",
	OpCollectionCreation:   "CollectionCreation",
	OpThrow:                "Throw",
	OpAnonymousFunction:    "AnonymousFunction",
	OpLocalFunction:        "LocalFunction",
	OpReturn:               "Return",
}

func (k OpKind) String() string {
	if k >= 0 && int(k) < len(opKindNames) {
		return opKindNames[k]
	}
	return fmt.Sprintf("OpKind(%d)", int(k))
}

// Operation is a node of the typed operation tree attached to blocks.
// Children are evaluated left to right before the operation itself.
type Operation interface {
	Kind() OpKind
	Children() []Operation
	Pos() token.Pos
	String() string
}

// Node carries the source position shared by all operations.
type Node struct {
	Position token.Pos
}

func (n Node) Pos() token.Pos { return n.Position }

// SetPos updates the source position of the operation.
func (n *Node) SetPos(pos token.Pos) { n.Position = pos }

type (
	// Literal is a constant: nil, bool, integer, float or string.
	Literal struct {
		Node
		Value any
	}

	LocalReference struct {
		Node
		Local Symbol
	}

	ParameterReference struct {
		Node
		Parameter Symbol
	}

	// FieldReference reads a field of Instance. Instance is nil for
	// static fields and package level variables.
	FieldReference struct {
		Node
		Instance Operation
		Field    Symbol
	}

	Assignment struct {
		Node
		Target Operation
		Value  Operation
	}

	// Invocation calls Method on Receiver, which is nil for static calls.
	Invocation struct {
		Node
		Method   string
		Receiver Operation
		Args     []Operation
	}

	Conversion struct {
		Node
		Operand  Operation
		Implicit bool
	}

	// FlowCapture stores Value in a temporary slot identified by ID.
	FlowCapture struct {
		Node
		ID    int
		Value Operation
	}

	FlowCaptureReference struct {
		Node
		ID int
	}

	Binary struct {
		Node
		Op    BinaryOp
		Left  Operation
		Right Operation
	}

	Unary struct {
		Node
		Op      UnaryOp
		Operand Operation
	}

	// Logical is a short-circuiting conjunction or disjunction.
	Logical struct {
		Node
		And   bool
		Left  Operation
		Right Operation
	}

	IsNull struct {
		Node
		Operand Operation
	}

	ObjectCreation struct {
		Node
		Type string
	}

	// CollectionCreation creates a collection with Count initial elements.
	// A negative count is unknown.
	CollectionCreation struct {
		Node
		Count int
	}

	Throw struct {
		Node
		Exception Operation
	}

	AnonymousFunction struct {
		Node
		Symbol Symbol
		Body   BodyFunc
	}

	LocalFunction struct {
		Node
		Symbol Symbol
		Body   BodyFunc
	}

	// Return carries the returned value, if any.
	Return struct {
		Node
		Value Operation
	}

	// Unknown is anything the host could not classify.
	Unknown struct {
		Node
		Text     string
		Operands []Operation
	}
)

// BodyFunc lazily constructs the graph of a nested function, given the
// graph of the enclosing function.
type BodyFunc func(parent *Graph) (*Graph, error)

type BinaryOp int

const (
	Equal BinaryOp = iota
	NotEqual
	Less
	LessEqual
	Greater
	GreaterEqual
	Add
	Subtract
	Multiply
	Divide
)

var binaryOpNames = [...]string{"==", "!=", "<", "<=", ">", ">=", "+", "-", "*", "/"}

func (op BinaryOp) String() string {
	if op >= 0 && int(op) < len(binaryOpNames) {
		return binaryOpNames[op]
	}
	return fmt.Sprintf("BinaryOp(%d)", int(op))
}

// IsRelational is true for comparison operators.
func (op BinaryOp) IsRelational() bool {
	return op <= GreaterEqual
}

// Negate returns the operator accepting exactly the complement.
func (op BinaryOp) Negate() BinaryOp {
	switch op {
	case Equal:
		return NotEqual
	case NotEqual:
		return Equal
	case Less:
		return GreaterEqual
	case LessEqual:
		return Greater
	case Greater:
		return LessEqual
	case GreaterEqual:
		return Less
	}
	return op
}

// Swap returns the operator obtained by exchanging the operands.
func (op BinaryOp) Swap() BinaryOp {
	switch op {
	case Less:
		return Greater
	case LessEqual:
		return GreaterEqual
	case Greater:
		return Less
	case GreaterEqual:
		return LessEqual
	}
	return op
}

type UnaryOp int

const (
	Not UnaryOp = iota
	Negate
)

func (op UnaryOp) String() string {
	switch op {
	case Not:
		return "!"
	case Negate:
		return "-"
	}
	return fmt.Sprintf("UnaryOp(%d)", int(op))
}

func (*Literal) Kind() OpKind              { return OpLiteral }
func (*LocalReference) Kind() OpKind       { return OpLocalReference }
func (*ParameterReference) Kind() OpKind   { return OpParameterReference }
func (*FieldReference) Kind() OpKind       { return OpFieldReference }
func (*Assignment) Kind() OpKind           { return OpAssignment }
func (*Invocation) Kind() OpKind           { return OpInvocation }
func (*Conversion) Kind() OpKind           { return OpConversion }
func (*FlowCapture) Kind() OpKind          { return OpFlowCapture }
func (*FlowCaptureReference) Kind() OpKind { return OpFlowCaptureReference }
func (*Binary) Kind() OpKind               { return OpBinary }
func (*Unary) Kind() OpKind                { return OpUnary }
func (*Logical) Kind() OpKind              { return OpLogical }
func (*IsNull) Kind() OpKind               { return OpIsNull }
func (*ObjectCreation) Kind() OpKind       { return OpObjectCreation }
func (*CollectionCreation) Kind() OpKind   { return OpCollectionCreation }
func (*Throw) Kind() OpKind                { return OpThrow }
func (*AnonymousFunction) Kind() OpKind    { return OpAnonymousFunction }
func (*LocalFunction) Kind() OpKind        { return OpLocalFunction }
func (*Return) Kind() OpKind               { return OpReturn }
func (*Unknown) Kind() OpKind              { return OpUnknown }

func (*Literal) Children() []Operation              { return nil }
func (*LocalReference) Children() []Operation       { return nil }
func (*ParameterReference) Children() []Operation   { return nil }
func (*FlowCaptureReference) Children() []Operation { return nil }
func (*ObjectCreation) Children() []Operation       { return nil }
func (*CollectionCreation) Children() []Operation   { return nil }
func (*AnonymousFunction) Children() []Operation    { return nil }
func (*LocalFunction) Children() []Operation        { return nil }

func (o *FieldReference) Children() []Operation { return nonNil(o.Instance) }
func (o *Assignment) Children() []Operation     { return nonNil(o.Target, o.Value) }
func (o *Conversion) Children() []Operation     { return nonNil(o.Operand) }
func (o *FlowCapture) Children() []Operation    { return nonNil(o.Value) }
func (o *Binary) Children() []Operation         { return nonNil(o.Left, o.Right) }
func (o *Unary) Children() []Operation          { return nonNil(o.Operand) }
func (o *Logical) Children() []Operation        { return nonNil(o.Left, o.Right) }
func (o *IsNull) Children() []Operation         { return nonNil(o.Operand) }
func (o *Throw) Children() []Operation          { return nonNil(o.Exception) }
func (o *Return) Children() []Operation         { return nonNil(o.Value) }
func (o *Unknown) Children() []Operation        { return nonNil(o.Operands...) }

func (o *Invocation) Children() []Operation {
	return nonNil(append([]Operation{o.Receiver}, o.Args...)...)
}

func nonNil(ops ...Operation) (res []Operation) {
	for _, op := range ops {
		if op != nil {
			res = append(res, op)
		}
	}
	return
}

func (o *Literal) String() string {
	switch v := o.Value.(type) {
	case nil:
		return "nil"
	case string:
		return fmt.Sprintf("%q", v)
	default:
		return fmt.Sprint(v)
	}
}

func (o *LocalReference) String() string     { return o.Local.Name() }
func (o *ParameterReference) String() string { return o.Parameter.Name() }

func (o *FieldReference) String() string {
	if o.Instance == nil {
		return o.Field.Name()
	}
	return o.Instance.String() + "." + o.Field.Name()
}

func (o *Assignment) String() string {
	return o.Target.String() + " = " + o.Value.String()
}

func (o *Invocation) String() string {
	args := make([]string, len(o.Args))
	for i, arg := range o.Args {
		args[i] = arg.String()
	}

	call := o.Method + "(" + strings.Join(args, ", ") + ")"
	if o.Receiver != nil {
		return o.Receiver.String() + "." + call
	}
	return call
}

func (o *Conversion) String() string {
	if o.Implicit {
		return "implicit(" + o.Operand.String() + ")"
	}
	return "convert(" + o.Operand.String() + ")"
}

func (o *FlowCapture) String() string          { return fmt.Sprintf("#%d = %s", o.ID, o.Value) }
func (o *FlowCaptureReference) String() string { return fmt.Sprintf("#%d", o.ID) }

func (o *Binary) String() string {
	return "(" + o.Left.String() + " " + o.Op.String() + " " + o.Right.String() + ")"
}

func (o *Unary) String() string { return o.Op.String() + o.Operand.String() }

func (o *Logical) String() string {
	op := "||"
	if o.And {
		op = "&&"
	}
	return "(" + o.Left.String() + " " + op + " " + o.Right.String() + ")"
}

func (o *IsNull) String() string             { return "isnull(" + o.Operand.String() + ")" }
func (o *ObjectCreation) String() string     { return "new " + o.Type }
func (o *CollectionCreation) String() string { return fmt.Sprintf("make[%d]", o.Count) }
func (o *Throw) String() string              { return "throw " + o.Exception.String() }

func (o *AnonymousFunction) String() string { return "func " + symbolName(o.Symbol) }
func (o *LocalFunction) String() string     { return "local func " + symbolName(o.Symbol) }

func (o *Return) String() string {
	if o.Value == nil {
		return "return"
	}
	return "return " + o.Value.String()
}

func (o *Unknown) String() string {
	ops := make([]string, len(o.Operands))
	for i, op := range o.Operands {
		ops[i] = op.String()
	}
	return "?" + o.Text + "(" + strings.Join(ops, ", ") + ")"
}

func symbolName(s Symbol) string {
	if s == nil {
		return "<anonymous>"
	}
	return s.Name()
}

// ReferencedSymbol returns the symbol referenced by a local, parameter or
// field reference.
func ReferencedSymbol(op Operation) (Symbol, bool) {
	switch op := op.(type) {
	case *LocalReference:
		return op.Local, true
	case *ParameterReference:
		return op.Parameter, true
	case *FieldReference:
		return op.Field, true
	}
	return nil, false
}

// Walk visits op and its descendants in pre-order, stopping the descent
// into children when do returns false.
func Walk(op Operation, do func(Operation) bool) {
	if op == nil || !do(op) {
		return
	}
	for _, child := range op.Children() {
		Walk(child, do)
	}
}
