package server

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/pingcap/parser"
	"github.com/pingcap/parser/ast"
	_ "github.com/pingcap/parser/test_driver"

	"github.com/vczyh/mysql-cdc/myerrors"
)

type Handler interface {
	Command
	Listener
}

// Command answers the text protocol commands. A nil ResultSet from Query
// is sent as OK.
type Command interface {
	Ping(s *Session) error
	Query(s *Session, query string) (*ResultSet, error)
}

type Listener interface {
	OnConnect(s *Session)
	OnClose(s *Session)
}

// SourceHandler answers the statements a replica runs before it dumps:
// SET of user variables, SELECT of system and user variables and SHOW
// MASTER STATUS.
type SourceHandler struct {
	binlog    *Binlog
	variables map[string]string
}

func NewSourceHandler(b *Binlog, variables map[string]string) *SourceHandler {
	vars := make(map[string]string, len(variables))
	for k, v := range variables {
		vars[strings.ToLower(k)] = v
	}
	return &SourceHandler{binlog: b, variables: vars}
}

func (h *SourceHandler) Ping(*Session) error {
	return nil
}

func (h *SourceHandler) Query(s *Session, query string) (*ResultSet, error) {
	stmt, err := parser.New().ParseOneStmt(query, "", "")
	if err != nil {
		return nil, myerrors.SyntaxError.Build(err.Error())
	}

	switch v := stmt.(type) {
	case *ast.SetStmt:
		return nil, h.set(s, v)
	case *ast.SelectStmt:
		return h.selectVariables(s, v)
	case *ast.ShowStmt:
		if v.Tp != ast.ShowMasterStatus {
			return nil, myerrors.NotSupportedYet.Build(query)
		}
		return h.masterStatus(), nil
	default:
		return nil, myerrors.NotSupportedYet.Build(query)
	}
}

func (h *SourceHandler) set(s *Session, stmt *ast.SetStmt) error {
	for _, assignment := range stmt.Variables {
		if assignment.IsSystem {
			return myerrors.NotSupportedYet.Build("SET of system variables")
		}
		val, err := h.value(s, assignment.Value)
		if err != nil {
			return err
		}
		s.SetUserVar(assignment.Name, val.String)
	}
	return nil
}

func (h *SourceHandler) selectVariables(s *Session, stmt *ast.SelectStmt) (*ResultSet, error) {
	if stmt.From != nil || stmt.Fields == nil {
		return nil, myerrors.NotSupportedYet.Build("SELECT from tables")
	}

	rs := new(ResultSet)
	row := make([]sql.NullString, 0, len(stmt.Fields.Fields))
	for _, field := range stmt.Fields.Fields {
		if field.Expr == nil {
			return nil, myerrors.NotSupportedYet.Build("SELECT *")
		}
		val, err := h.value(s, field.Expr)
		if err != nil {
			return nil, err
		}
		name := field.AsName.O
		if name == "" {
			name = columnName(field.Expr)
		}
		rs.Columns = append(rs.Columns, name)
		row = append(row, val)
	}
	rs.Rows = [][]sql.NullString{row}
	return rs, nil
}

func (h *SourceHandler) value(s *Session, expr ast.ExprNode) (sql.NullString, error) {
	switch e := expr.(type) {
	case *ast.VariableExpr:
		name := strings.ToLower(e.Name)
		if !e.IsSystem {
			v, ok := s.UserVar(name)
			return sql.NullString{String: v, Valid: ok}, nil
		}
		v, ok := h.variable(name)
		if !ok {
			return sql.NullString{}, myerrors.UnknownSystemVariable.Build(name)
		}
		return sql.NullString{String: v, Valid: true}, nil

	case ast.ValueExpr:
		v := e.GetValue()
		if v == nil {
			return sql.NullString{}, nil
		}
		return sql.NullString{String: fmt.Sprint(v), Valid: true}, nil

	default:
		return sql.NullString{}, myerrors.NotSupportedYet.Build(fmt.Sprintf("expression %T", expr))
	}
}

func (h *SourceHandler) variable(name string) (string, bool) {
	if name == "gtid_executed" || name == "gtid_purged" {
		_, _, executed := h.binlog.Status()
		if name == "gtid_purged" {
			executed = h.binlog.purgedGTIDs()
		}
		return executed.String(), true
	}
	v, ok := h.variables[name]
	return v, ok
}

func columnName(expr ast.ExprNode) string {
	switch e := expr.(type) {
	case *ast.VariableExpr:
		switch {
		case !e.IsSystem:
			return "@" + e.Name
		case e.IsGlobal:
			return "@@GLOBAL." + e.Name
		default:
			return "@@" + e.Name
		}
	case ast.ValueExpr:
		return fmt.Sprint(e.GetValue())
	default:
		return "?"
	}
}

func (h *SourceHandler) masterStatus() *ResultSet {
	name, size, executed := h.binlog.Status()
	return &ResultSet{
		Columns: []string{"File", "Position", "Binlog_Do_DB", "Binlog_Ignore_DB", "Executed_Gtid_Set"},
		Rows: [][]sql.NullString{{
			{String: name, Valid: true},
			{String: strconv.FormatUint(uint64(size), 10), Valid: true},
			{Valid: true},
			{Valid: true},
			{String: executed.String(), Valid: true},
		}},
	}
}

func (h *SourceHandler) OnConnect(*Session) {}

func (h *SourceHandler) OnClose(*Session) {}
