// Package calc is the bundled calculator extension: calc <expr> and = <expr>.
package calc

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/expr-lang/expr"

	"github.com/poly-cli/poly/internal/extension"
)

var allowed = regexp.MustCompile(`^[a-zA-Z0-9.+\-*/%()\s^,]+$`)

var constants = map[string]any{
	"pi":  math.Pi,
	"e":   math.E,
	"tau": 2 * math.Pi,
}

type unary func(float64) float64

var unaries = map[string]unary{
	"sqrt":    math.Sqrt,
	"sin":     math.Sin,
	"cos":     math.Cos,
	"tan":     math.Tan,
	"asin":    math.Asin,
	"acos":    math.Acos,
	"atan":    math.Atan,
	"sinh":    math.Sinh,
	"cosh":    math.Cosh,
	"tanh":    math.Tanh,
	"log10":   math.Log10,
	"log2":    math.Log2,
	"exp":     math.Exp,
	"gamma":   math.Gamma,
	"degrees": func(x float64) float64 { return x * 180 / math.Pi },
	"radians": func(x float64) float64 { return x * math.Pi / 180 },
}

// builtins are provided by expr itself.
var builtins = []string{"abs", "ceil", "floor", "round", "max", "min"}

type Provider struct {
	opts []expr.Option
}

func New() *Provider {
	p := &Provider{opts: []expr.Option{expr.Env(constants)}}
	for name, fn := range unaries {
		p.opts = append(p.opts, expr.Function(name, wrapUnary(name, fn)))
	}
	p.opts = append(p.opts,
		expr.Function("log", logFn),
		expr.Function("pow", binary("pow", math.Pow)),
		expr.Function("atan2", binary("atan2", math.Atan2)),
		expr.Function("factorial", factorial),
	)
	return p
}

func (p *Provider) ID() string { return "go:calc" }

func (p *Provider) Register(r extension.Registrar) error {
	r.DefineCommand("calc", p.command, nil)
	r.DefineCommand("=", p.command, nil)
	return nil
}

func (p *Provider) command(s extension.Session, _ []string, rest string) error {
	rest = strings.TrimSpace(rest)
	if rest == "" || strings.EqualFold(rest, "help") {
		s.Add(Help())
		return nil
	}
	out, err := p.Eval(rest)
	if err != nil {
		s.Add("Error: " + err.Error())
		return nil
	}
	s.Add(out)
	return nil
}

var (
	errDivZero = errors.New("division by zero")
	errRange   = errors.New("division by zero or result out of range")
)

// Eval evaluates a math expression and formats the result.
func (p *Provider) Eval(expression string) (string, error) {
	if !allowed.MatchString(expression) {
		return "", errors.New("invalid characters in expression")
	}
	program, err := expr.Compile(expression, p.opts...)
	if err != nil {
		return "", err
	}
	out, err := expr.Run(program, constants)
	if err != nil {
		if strings.Contains(err.Error(), "divide by zero") {
			return "", errDivZero
		}
		return "", err
	}
	if f, ok := out.(float64); ok {
		if math.IsInf(f, 0) {
			return "", errRange
		}
		if f == math.Trunc(f) && math.Abs(f) < 1e15 {
			return fmt.Sprintf("%.1f", f), nil
		}
	}
	return fmt.Sprint(out), nil
}

// Help lists operators, constants and functions.
func Help() string {
	var consts, funcs []string
	for k := range constants {
		consts = append(consts, k)
	}
	for k := range unaries {
		funcs = append(funcs, k)
	}
	funcs = append(funcs, "log", "pow", "atan2", "factorial")
	funcs = append(funcs, builtins...)
	sort.Strings(consts)
	sort.Strings(funcs)

	var b strings.Builder
	b.WriteString("--- Calculator Help ---\n")
	b.WriteString("Usage: calc <expression>  OR  = <expression>\n")
	b.WriteString("Example: calc sqrt(9) * (pi / 2)\n")
	b.WriteString("Operators: +, -, *, /, %, ** (power), ^ (power)\n")
	b.WriteString("Constants:\n  " + strings.Join(consts, ", ") + "\n")
	b.WriteString("Functions:\n")
	for i := 0; i < len(funcs); i += 4 {
		b.WriteString("  ")
		for _, f := range funcs[i:min(i+4, len(funcs))] {
			fmt.Fprintf(&b, "%-12s", f)
		}
		b.WriteString("\n")
	}
	b.WriteString("-----------------------")
	return b.String()
}

func toFloat(name string, v any) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	}
	return 0, fmt.Errorf("%s: expected a number, got %T", name, v)
}

func wrapUnary(name string, fn unary) func(params ...any) (any, error) {
	return func(params ...any) (any, error) {
		if len(params) != 1 {
			return nil, fmt.Errorf("%s takes 1 argument", name)
		}
		x, err := toFloat(name, params[0])
		if err != nil {
			return nil, err
		}
		return fn(x), nil
	}
}

func binary(name string, fn func(a, b float64) float64) func(params ...any) (any, error) {
	return func(params ...any) (any, error) {
		if len(params) != 2 {
			return nil, fmt.Errorf("%s takes 2 arguments", name)
		}
		a, err := toFloat(name, params[0])
		if err != nil {
			return nil, err
		}
		b, err := toFloat(name, params[1])
		if err != nil {
			return nil, err
		}
		return fn(a, b), nil
	}
}

// logFn is log(x) or log(x, base).
func logFn(params ...any) (any, error) {
	if len(params) < 1 || len(params) > 2 {
		return nil, errors.New("log takes 1 or 2 arguments")
	}
	x, err := toFloat("log", params[0])
	if err != nil {
		return nil, err
	}
	if len(params) == 1 {
		return math.Log(x), nil
	}
	base, err := toFloat("log", params[1])
	if err != nil {
		return nil, err
	}
	return math.Log(x) / math.Log(base), nil
}

func factorial(params ...any) (any, error) {
	if len(params) != 1 {
		return nil, errors.New("factorial takes 1 argument")
	}
	x, err := toFloat("factorial", params[0])
	if err != nil {
		return nil, err
	}
	if x < 0 || x != math.Trunc(x) {
		return nil, errors.New("factorial() only accepts integral, non-negative values")
	}
	if x > 170 {
		return nil, errors.New("factorial() argument too large")
	}
	result := 1.0
	for i := 2; i <= int(x); i++ {
		result *= float64(i)
	}
	if result < 1<<53 {
		return int(result), nil
	}
	return result, nil
}
