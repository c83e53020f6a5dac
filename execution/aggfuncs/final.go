package aggfuncs

import (
	"mit.edu/dsg/aggengine/common"
	"mit.edu/dsg/aggengine/planner"
	"mit.edu/dsg/aggengine/storage"
)

// FinalExpr is the final-stage expression of a split aggregate, bound to the layout of a merged partial
// row. Every aggregate inside it is computed by a fresh accumulator fed that single row.
type FinalExpr struct {
	expr    planner.Expr
	builder Builder
}

// CompileFinal resolves the references of final against the named columns of merged partial rows.
func CompileFinal(final planner.Expr, names []string, schema []common.Type) (*FinalExpr, error) {
	return Builder{}.CompileFinal(final, names, schema)
}

// CompileFinal is the Builder form of CompileFinal.
func (b Builder) CompileFinal(final planner.Expr, names []string, schema []common.Type) (*FinalExpr, error) {
	bound, err := planner.BindAttributes(final, names, schema)
	if err != nil {
		return nil, err
	}
	return &FinalExpr{expr: bound, builder: b}, nil
}

// Eval computes the final value for one merged partial row.
func (f *FinalExpr) Eval(row storage.Tuple) (common.Value, error) {
	reduced, err := planner.Transform(f.expr, func(e planner.Expr) (planner.Expr, error) {
		agg, ok := e.(planner.AggregateExpr)
		if !ok {
			return e, nil
		}
		acc := f.builder.Build(agg)
		if err := acc.Update(row); err != nil {
			return nil, err
		}
		v, err := acc.Eval()
		if err != nil {
			return nil, err
		}
		return planner.NewConstantValueExpression(v), nil
	})
	if err != nil {
		return common.Value{}, err
	}
	return reduced.Eval(row), nil
}

func (f *FinalExpr) String() string {
	return f.expr.String()
}

// EvalFinal compiles final against the names of row's columns and evaluates it once.
func EvalFinal(final planner.Expr, names []string, row storage.Tuple) (common.Value, error) {
	schema := make([]common.Type, row.NumColumns())
	for i := range schema {
		schema[i] = row.GetValue(i).Type()
	}
	f, err := CompileFinal(final, names, schema)
	if err != nil {
		return common.Value{}, err
	}
	return f.Eval(row)
}
