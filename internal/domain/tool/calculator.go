package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Calculator evaluates arithmetic expressions with common math functions.
// Expressions are parsed by a small recursive descent evaluator; nothing is
// ever passed to a shell or interpreter.
type Calculator struct{}

// NewCalculator creates the calculator tool.
func NewCalculator() *Calculator { return &Calculator{} }

func (c *Calculator) Name() string { return "calculate" }

func (c *Calculator) Description() string {
	return "Perform mathematical calculations. Supports +, -, *, /, %, ** and " +
		"functions such as sqrt, sin, cos, tan, log, exp, floor, ceil."
}

func (c *Calculator) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"expression": map[string]any{
				"type":        "string",
				"description": "Math expression to evaluate (e.g. '2 + 2', 'sqrt(16)', 'sin(pi/2)')",
			},
		},
		"required": []string{"expression"},
	}
}

type calculatorArgs struct {
	Expression string `json:"expression"`
}

// Call evaluates the expression and returns "expr = result".
func (c *Calculator) Call(_ context.Context, args json.RawMessage) (string, error) {
	var in calculatorArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("decode arguments: %w", err)
	}
	if strings.TrimSpace(in.Expression) == "" {
		return "", fmt.Errorf("expression is required")
	}
	v, err := evaluate(in.Expression)
	if err != nil {
		return "", fmt.Errorf("invalid expression: %w", err)
	}
	return fmt.Sprintf("%s = %s", in.Expression, formatNumber(v)), nil
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

type calcFunc struct {
	arity int
	fn    func(args []float64) float64
}

var calcFuncs = map[string]calcFunc{
	"abs":   {1, func(a []float64) float64 { return math.Abs(a[0]) }},
	"round": {1, func(a []float64) float64 { return math.Round(a[0]) }},
	"min":   {2, func(a []float64) float64 { return math.Min(a[0], a[1]) }},
	"max":   {2, func(a []float64) float64 { return math.Max(a[0], a[1]) }},
	"pow":   {2, func(a []float64) float64 { return math.Pow(a[0], a[1]) }},
	"sqrt":  {1, func(a []float64) float64 { return math.Sqrt(a[0]) }},
	"sin":   {1, func(a []float64) float64 { return math.Sin(a[0]) }},
	"cos":   {1, func(a []float64) float64 { return math.Cos(a[0]) }},
	"tan":   {1, func(a []float64) float64 { return math.Tan(a[0]) }},
	"asin":  {1, func(a []float64) float64 { return math.Asin(a[0]) }},
	"acos":  {1, func(a []float64) float64 { return math.Acos(a[0]) }},
	"atan":  {1, func(a []float64) float64 { return math.Atan(a[0]) }},
	"log":   {1, func(a []float64) float64 { return math.Log(a[0]) }},
	"log10": {1, func(a []float64) float64 { return math.Log10(a[0]) }},
	"exp":   {1, func(a []float64) float64 { return math.Exp(a[0]) }},
	"floor": {1, func(a []float64) float64 { return math.Floor(a[0]) }},
	"ceil":  {1, func(a []float64) float64 { return math.Ceil(a[0]) }},
}

// exprParser is a recursive descent parser over a byte offset.
// Grammar, loosest to tightest binding: sum, product, power, unary, primary.
// ** (and ^) are right associative and bind tighter than unary minus on the
// left, so -2**2 evaluates to -4.
type exprParser struct {
	in  string
	pos int
}

func evaluate(expr string) (float64, error) {
	p := &exprParser{in: expr}
	v, err := p.parseSum()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.pos < len(p.in) {
		return 0, fmt.Errorf("unexpected %q at offset %d", string(p.in[p.pos]), p.pos)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("math domain error")
	}
	return v, nil
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.in) && (p.in[p.pos] == ' ' || p.in[p.pos] == '\t') {
		p.pos++
	}
}

func (p *exprParser) peek() byte {
	if p.pos < len(p.in) {
		return p.in[p.pos]
	}
	return 0
}

func (p *exprParser) parseSum() (float64, error) {
	v, err := p.parseProduct()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		switch p.peek() {
		case '+':
			p.pos++
			r, err := p.parseProduct()
			if err != nil {
				return 0, err
			}
			v += r
		case '-':
			p.pos++
			r, err := p.parseProduct()
			if err != nil {
				return 0, err
			}
			v -= r
		default:
			return v, nil
		}
	}
}

func (p *exprParser) parseProduct() (float64, error) {
	v, err := p.parsePower()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		switch p.peek() {
		case '*':
			if p.pos+1 < len(p.in) && p.in[p.pos+1] == '*' {
				// ** belongs to parsePower; reaching it here means a
				// malformed sequence like 2***3.
				return 0, fmt.Errorf("unexpected \"**\" at offset %d", p.pos)
			}
			p.pos++
			r, err := p.parsePower()
			if err != nil {
				return 0, err
			}
			v *= r
		case '/':
			p.pos++
			r, err := p.parsePower()
			if err != nil {
				return 0, err
			}
			if r == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			v /= r
		case '%':
			p.pos++
			r, err := p.parsePower()
			if err != nil {
				return 0, err
			}
			if r == 0 {
				return 0, fmt.Errorf("modulo by zero")
			}
			v = math.Mod(v, r)
		default:
			return v, nil
		}
	}
}

func (p *exprParser) parsePower() (float64, error) {
	v, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if strings.HasPrefix(p.in[p.pos:], "**") {
		p.pos += 2
		r, err := p.parsePower()
		if err != nil {
			return 0, err
		}
		return math.Pow(v, r), nil
	}
	if p.peek() == '^' {
		p.pos++
		r, err := p.parsePower()
		if err != nil {
			return 0, err
		}
		return math.Pow(v, r), nil
	}
	return v, nil
}

func (p *exprParser) parseUnary() (float64, error) {
	p.skipSpace()
	switch p.peek() {
	case '-':
		p.pos++
		v, err := p.parsePower()
		if err != nil {
			return 0, err
		}
		return -v, nil
	case '+':
		p.pos++
		return p.parsePower()
	}
	return p.parsePrimary()
}

func (p *exprParser) parsePrimary() (float64, error) {
	p.skipSpace()
	c := p.peek()
	switch {
	case c == '(':
		p.pos++
		v, err := p.parseSum()
		if err != nil {
			return 0, err
		}
		p.skipSpace()
		if p.peek() != ')' {
			return 0, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return v, nil
	case isDigit(c) || c == '.':
		return p.parseNumber()
	case isAlpha(c):
		return p.parseNameOrCall()
	case c == 0:
		return 0, fmt.Errorf("unexpected end of expression")
	default:
		return 0, fmt.Errorf("unexpected %q at offset %d", string(c), p.pos)
	}
}

func (p *exprParser) parseNumber() (float64, error) {
	start := p.pos
	for p.pos < len(p.in) && (isDigit(p.in[p.pos]) || p.in[p.pos] == '.') {
		p.pos++
	}
	// Scientific notation: only consume e/E when a digit actually follows,
	// otherwise "2*e" would swallow the constant.
	if p.pos < len(p.in) && (p.in[p.pos] == 'e' || p.in[p.pos] == 'E') {
		next := p.pos + 1
		if next < len(p.in) && (p.in[next] == '+' || p.in[next] == '-') {
			next++
		}
		if next < len(p.in) && isDigit(p.in[next]) {
			p.pos = next + 1
			for p.pos < len(p.in) && isDigit(p.in[p.pos]) {
				p.pos++
			}
		}
	}
	v, err := strconv.ParseFloat(p.in[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("bad number %q", p.in[start:p.pos])
	}
	return v, nil
}

func (p *exprParser) parseNameOrCall() (float64, error) {
	start := p.pos
	for p.pos < len(p.in) && (isAlpha(p.in[p.pos]) || isDigit(p.in[p.pos])) {
		p.pos++
	}
	name := p.in[start:p.pos]

	p.skipSpace()
	if p.peek() != '(' {
		switch name {
		case "pi":
			return math.Pi, nil
		case "e":
			return math.E, nil
		}
		return 0, fmt.Errorf("unknown constant %q", name)
	}

	p.pos++
	var args []float64
	p.skipSpace()
	if p.peek() != ')' {
		for {
			v, err := p.parseSum()
			if err != nil {
				return 0, err
			}
			args = append(args, v)
			p.skipSpace()
			if p.peek() == ',' {
				p.pos++
				continue
			}
			break
		}
	}
	p.skipSpace()
	if p.peek() != ')' {
		return 0, fmt.Errorf("missing closing parenthesis in %s()", name)
	}
	p.pos++

	f, ok := calcFuncs[name]
	if !ok {
		return 0, fmt.Errorf("unknown function %q", name)
	}
	if len(args) != f.arity {
		return 0, fmt.Errorf("%s() takes %d argument(s), got %d", name, f.arity, len(args))
	}
	v := f.fn(args)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("math domain error in %s()", name)
	}
	return v, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isAlpha(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_'
}
