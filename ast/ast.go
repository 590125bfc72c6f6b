// Package ast holds the structured statements the execution engine consumes.
// Turning statement text into these values is left to a parser.
package ast

import "fmt"

type (
	Statement interface {
		statement()
		// Target is the table the statement operates on
		Target() string
	}

	Select struct {
		Columns []ColumnExpr   `json:"columns"`
		Table   string         `json:"table"`
		Join    *JoinClause    `json:"join,omitempty"`
		Where   *WhereClause   `json:"where,omitempty"`
		GroupBy []string       `json:"group_by,omitempty"`
		Having  *HavingClause  `json:"having,omitempty"`
		OrderBy *OrderByClause `json:"order_by,omitempty"`
	}

	Insert struct {
		Table   string     `json:"table"`
		Columns []string   `json:"columns"`
		Values  [][]string `json:"values"`
	}

	Update struct {
		Table       string       `json:"table"`
		Assignments []Assignment `json:"assignments"`
		Where       *WhereClause `json:"where,omitempty"`
	}

	Delete struct {
		Table string       `json:"table"`
		Where *WhereClause `json:"where,omitempty"`
	}

	CreateTable struct {
		Table   string      `json:"table"`
		Columns []ColumnDef `json:"columns"`
	}

	AlterTable struct {
		Table  string      `json:"table"`
		Action AlterAction `json:"action"`
	}

	DropTable struct {
		Table string `json:"table"`
	}

	Assignment struct {
		Column string `json:"column"`
		Value  string `json:"value"`
	}

	ColumnDef struct {
		Name string `json:"name"`
		Type string `json:"type"`
	}

	AlterAction struct {
		Kind   AlterKind `json:"kind"`
		Column string    `json:"column"`
		Type   string    `json:"type,omitempty"`
	}

	AlterKind string

	WhereClause struct {
		Column   string `json:"column"`
		Operator string `json:"operator"`
		Value    string `json:"value"`
	}

	OrderByClause struct {
		Column     string `json:"column"`
		Descending bool   `json:"descending,omitempty"`
	}

	JoinClause struct {
		Kind     JoinKind `json:"kind"`
		Table    string   `json:"table"`
		LeftKey  string   `json:"left_key,omitempty"`
		RightKey string   `json:"right_key,omitempty"`
	}

	JoinKind string

	HavingClause struct {
		Expr     ColumnExpr `json:"expr"`
		Operator string     `json:"operator"`
		Value    string     `json:"value"`
	}

	ColumnExpr struct {
		Kind   ExprKind `json:"kind"`
		Column string   `json:"column,omitempty"`
	}

	ExprKind string
)

const (
	AddColumn    AlterKind = "ADD"
	DropColumn   AlterKind = "DROP"
	ModifyColumn AlterKind = "MODIFY"
)

const (
	Inner JoinKind = "INNER"
	Left  JoinKind = "LEFT"
	Right JoinKind = "RIGHT"
	Full  JoinKind = "FULL"
	Cross JoinKind = "CROSS"
)

const (
	Column   ExprKind = "COLUMN"
	CountAll ExprKind = "COUNT_ALL"
	Count    ExprKind = "COUNT"
	Sum      ExprKind = "SUM"
	Avg      ExprKind = "AVG"
	Min      ExprKind = "MIN"
	Max      ExprKind = "MAX"
	All      ExprKind = "ALL"
)

const (
	Eq = "="
	Ne = "!="
	Lt = "<"
	Gt = ">"
)

func (*Select) statement()      {}
func (*Insert) statement()      {}
func (*Update) statement()      {}
func (*Delete) statement()      {}
func (*CreateTable) statement() {}
func (*AlterTable) statement()  {}
func (*DropTable) statement()   {}

func (s *Select) Target() string      { return s.Table }
func (s *Insert) Target() string      { return s.Table }
func (s *Update) Target() string      { return s.Table }
func (s *Delete) Target() string      { return s.Table }
func (s *CreateTable) Target() string { return s.Table }
func (s *AlterTable) Target() string  { return s.Table }
func (s *DropTable) Target() string   { return s.Table }

func Col(name string) ColumnExpr { return ColumnExpr{Kind: Column, Column: name} }

func Star() ColumnExpr { return ColumnExpr{Kind: All} }

func Agg(kind ExprKind, column string) ColumnExpr {
	if kind == Count && column == "*" {
		return ColumnExpr{Kind: CountAll}
	}

	return ColumnExpr{Kind: kind, Column: column}
}

// IsAggregate reports whether the expression folds a group into one value
func (e ColumnExpr) IsAggregate() bool {
	switch e.Kind {
	case CountAll, Count, Sum, Avg, Min, Max:
		return true
	}

	return false
}

// String is the display name of the expression, e.g. SUM(total)
func (e ColumnExpr) String() string {
	switch e.Kind {
	case Column:
		return e.Column
	case CountAll:
		return "COUNT(*)"
	case All:
		return "*"
	case Count, Sum, Avg, Min, Max:
		return fmt.Sprintf("%s(%s)", e.Kind, e.Column)
	default:
		return fmt.Sprintf("%s?(%s)", e.Kind, e.Column)
	}
}
