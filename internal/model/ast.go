package model

// ast.go - syntax tree for the model language.
//
// A model file declares a set of probabilistic relations inside a model
// block. The for construct is declarative: it stands for one relation per
// index value, with no iteration-order semantics. The compiler unrolls it
// into independent per-observation nodes.

// Expr is a node in an expression tree.
type Expr interface {
	exprNode()
}

// NumberLit is a numeric literal.
type NumberLit struct {
	Value float64
	Pos   Position
}

// Ref is a reference to a scalar variable or one element of an array.
// Index is nil for scalar references.
type Ref struct {
	Name  string
	Index Expr // nil, loop-variable Ref, or NumberLit
	Pos   Position
}

// UnaryExpr is a unary operation (only negation).
type UnaryExpr struct {
	Op   TokenType
	Expr Expr
}

// BinaryExpr is a binary arithmetic operation.
type BinaryExpr struct {
	Op    TokenType
	Left  Expr
	Right Expr
}

// CallExpr is a call to a built-in scalar function (sqrt, log, exp, ...).
type CallExpr struct {
	Name string
	Args []Expr
	Pos  Position
}

func (*NumberLit) exprNode()  {}
func (*Ref) exprNode()        {}
func (*UnaryExpr) exprNode()  {}
func (*BinaryExpr) exprNode() {}
func (*CallExpr) exprNode()   {}

// DistCall is a distribution applied to argument expressions, e.g.
// dnorm(mu[i], tau).
type DistCall struct {
	Name string
	Args []Expr
	Pos  Position
}

// Stmt is a statement inside the model block.
type Stmt interface {
	stmtNode()
}

// StochasticRel declares LHS ~ Dist(args): the left-hand node is drawn from
// the distribution.
type StochasticRel struct {
	LHS  *Ref
	Dist *DistCall
}

// DeterministicRel declares LHS <- Expr: the left-hand node is a
// deterministic function of other nodes and carries no prior.
type DeterministicRel struct {
	LHS  *Ref
	Expr Expr
}

// ForLoop declares its body once per index value in [Lo, Hi]. Lo and Hi are
// integer literals or references to data scalars (e.g. N).
type ForLoop struct {
	Index string
	Lo    Expr
	Hi    Expr
	Body  []Stmt
	Pos   Position
}

func (*StochasticRel) stmtNode()    {}
func (*DeterministicRel) stmtNode() {}
func (*ForLoop) stmtNode()          {}

// Model is a parsed model file.
type Model struct {
	Name  string
	Stmts []Stmt
}
