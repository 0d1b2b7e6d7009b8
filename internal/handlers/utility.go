package handlers

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
)

// UtilityHandler runs local tools that need no inference: calculator, unit
// conversion, password generation and text manipulation.
type UtilityHandler struct {
	routes table
}

func NewUtilityHandler() *UtilityHandler {
	h := &UtilityHandler{}
	h.routes = table{
		{name: "password", keywords: []string{"password", "passphrase"}, do: h.password},
		{name: "convert", keywords: []string{"convert"}, do: h.convert},
		{name: "text", keywords: []string{"uppercase", "lowercase", "word count", "character count", "char count", "reverse"}, do: h.text},
	}
	return h
}

func (h *UtilityHandler) Handle(ctx context.Context, input, memCtx string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return noInput, nil
	}
	return h.routes.dispatch(ctx, input, memCtx, h.calculate)
}

func (h *UtilityHandler) calculate(_ context.Context, req request) (string, error) {
	return Calculate(req.input), nil
}

var (
	calcFillers = []string{"calculate", "what is", "how much is", "compute", "math", "eval"}

	// Applied in order; longer phrases precede the words they contain.
	calcOperators = strings.NewReplacer(
		"plus", "+",
		"minus", "-",
		"multiplied by", "*",
		"times", "*",
		"divided by", "/",
		"over", "/",
		"to the power of", "**",
		"power", "**",
		"modulo", "%",
		"mod", "%",
		"x", "*",
		"^", "**",
	)
)

const calcAllowed = "0123456789+-*/%.() "

// Calculate evaluates an arithmetic request such as "calculate 15 + 27".
// Word operators are normalized and every character outside digits,
// operators, dots, parentheses and spaces is dropped before evaluation.
func Calculate(input string) string {
	s := strings.ToLower(input)
	for _, w := range calcFillers {
		s = strings.ReplaceAll(s, w, "")
	}
	s = strings.TrimRight(strings.TrimSpace(s), "?")
	s = calcOperators.Replace(s)

	clean := strings.TrimSpace(strings.Map(func(r rune) rune {
		if strings.ContainsRune(calcAllowed, r) {
			return r
		}
		return -1
	}, s))
	if clean == "" {
		return "I couldn't understand that math expression. Try something like 'calculate 15 + 27'."
	}

	out, err := expr.Eval(clean, nil)
	if err != nil {
		if strings.Contains(err.Error(), "divide by zero") {
			return "Cannot divide by zero."
		}
		return fmt.Sprintf("Math error: %v. Try a simpler expression.", firstLine(err.Error()))
	}

	switch v := out.(type) {
	case int:
		return fmt.Sprintf("🧮 %s = %d", clean, v)
	case float64:
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return "Cannot divide by zero."
		}
		return fmt.Sprintf("🧮 %s = %s", clean, formatNumber(v, 6))
	default:
		return fmt.Sprintf("🧮 %s = %v", clean, v)
	}
}

// formatNumber prints whole values without a fraction and rounds the rest
// to the given number of decimals.
func formatNumber(v float64, decimals int) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	p := math.Pow(10, float64(decimals))
	return strconv.FormatFloat(math.Round(v*p)/p, 'f', -1, 64)
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

type unitPair struct{ from, to string }

var conversions = map[unitPair]float64{
	{"km", "miles"}: 0.621371, {"miles", "km"}: 1.60934,
	{"m", "feet"}: 3.28084, {"feet", "m"}: 0.3048,
	{"cm", "inches"}: 0.393701, {"inches", "cm"}: 2.54,
	{"m", "yards"}: 1.09361, {"yards", "m"}: 0.9144,
	{"kg", "lbs"}: 2.20462, {"lbs", "kg"}: 0.453592,
	{"kg", "pounds"}: 2.20462, {"pounds", "kg"}: 0.453592,
	{"g", "oz"}: 0.035274, {"oz", "g"}: 28.3495,
	{"liters", "gallons"}: 0.264172, {"gallons", "liters"}: 3.78541,
	{"ml", "cups"}: 0.00422675, {"cups", "ml"}: 236.588,
	{"kmh", "mph"}: 0.621371, {"mph", "kmh"}: 1.60934,
	{"gb", "mb"}: 1024, {"mb", "gb"}: 1.0 / 1024,
	{"tb", "gb"}: 1024, {"gb", "tb"}: 1.0 / 1024,
}

var unitSynonyms = map[string]string{
	"kilometer":  "km",
	"kilometre":  "km",
	"mile":       "miles",
	"celsius":    "c",
	"centigrade": "c",
	"fahrenheit": "f",
	"kelvin":     "k",
	"kilogram":   "kg",
	"lb":         "lbs",
	"pound":      "lbs",
}

var conversionPattern = regexp.MustCompile(`(\d+\.?\d*)\s*([a-zA-Z°]+)\s+(?:to|in)\s+([a-zA-Z°]+)`)

func (h *UtilityHandler) convert(_ context.Context, req request) (string, error) {
	return Convert(req.lower), nil
}

// Convert handles "convert <value> <unit> to <unit>".
func Convert(text string) string {
	m := conversionPattern.FindStringSubmatch(strings.ToLower(text))
	if m == nil {
		return "Format: 'convert 100 km to miles'. I support length, weight, temperature, volume, speed, and data units."
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return "Format: 'convert 100 km to miles'. I support length, weight, temperature, volume, speed, and data units."
	}
	from, to := normalizeUnit(m[2]), normalizeUnit(m[3])
	v := formatNumber(value, 4)

	isC := func(u string) bool { return u == "c" || u == "°c" }
	isF := func(u string) bool { return u == "f" || u == "°f" }
	switch {
	case isC(from) && isF(to):
		return fmt.Sprintf("🌡️ %s°C = %.1f°F", v, value*9/5+32)
	case isF(from) && isC(to):
		return fmt.Sprintf("🌡️ %s°F = %.1f°C", v, (value-32)*5/9)
	case isC(from) && to == "k":
		return fmt.Sprintf("🌡️ %s°C = %.1fK", v, value+273.15)
	case from == "k" && isC(to):
		return fmt.Sprintf("🌡️ %sK = %.1f°C", v, value-273.15)
	}

	factor, ok := lookupFactor(from, to)
	if !ok {
		return fmt.Sprintf("I don't know how to convert %s to %s. Supported: km↔miles, kg↔lbs, °C↔°F, liters↔gallons, and more.", from, to)
	}
	return fmt.Sprintf("📐 %s %s = %s %s", v, from, formatNumber(value*factor, 4), to)
}

func normalizeUnit(u string) string {
	switch u {
	case "celsius", "fahrenheit", "centigrade", "kelvin":
	default:
		u = strings.TrimRight(u, "s")
	}
	if s, ok := unitSynonyms[u]; ok {
		return s
	}
	return u
}

func lookupFactor(from, to string) (float64, bool) {
	for _, p := range []unitPair{{from, to}, {from + "s", to + "s"}, {from, to + "s"}, {from + "s", to}} {
		if f, ok := conversions[p]; ok {
			return f, true
		}
	}
	return 0, false
}

const (
	upperChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowerChars  = "abcdefghijklmnopqrstuvwxyz"
	digitChars  = "0123456789"
	symbolChars = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"
)

var lengthPattern = regexp.MustCompile(`\d+`)

func (h *UtilityHandler) password(_ context.Context, req request) (string, error) {
	length := 16
	if m := lengthPattern.FindString(req.lower); m != "" {
		if n, err := strconv.Atoi(m); err == nil {
			length = n
		} else {
			length = 128
		}
	}
	length = max(8, min(128, length))

	pw, err := GeneratePassword(length)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("🔐 Generated password (%d chars):\n%s", length, pw), nil
}

// GeneratePassword returns a random password from letters, digits and
// punctuation. Passwords of 12 or more characters contain every class.
func GeneratePassword(length int) (string, error) {
	alphabet := upperChars + lowerChars + digitChars + symbolChars
	out := make([]byte, length)
	for i := range out {
		c, err := randomChar(alphabet)
		if err != nil {
			return "", err
		}
		out[i] = c
	}

	if length >= 12 {
		for i, class := range []string{upperChars, lowerChars, digitChars, symbolChars} {
			c, err := randomChar(class)
			if err != nil {
				return "", err
			}
			out[i] = c
		}
		for i := len(out) - 1; i > 0; i-- {
			j, err := randomInt(i + 1)
			if err != nil {
				return "", err
			}
			out[i], out[j] = out[j], out[i]
		}
	}
	return string(out), nil
}

func randomChar(set string) (byte, error) {
	i, err := randomInt(len(set))
	if err != nil {
		return 0, err
	}
	return set[i], nil
}

func randomInt(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("generate random: %w", err)
	}
	return int(v.Int64()), nil
}

func (h *UtilityHandler) text(_ context.Context, req request) (string, error) {
	return TextTool(req.input), nil
}

// TextTool applies the first text tool named in input to the text after it.
func TextTool(input string) string {
	lower := strings.ToLower(input)
	switch {
	case strings.Contains(lower, "uppercase"):
		content := after(input, "uppercase")
		if content == "" {
			return "Provide text after 'uppercase'. Example: 'uppercase hello world'"
		}
		return "📝 " + strings.ToUpper(content)
	case strings.Contains(lower, "lowercase"):
		content := after(input, "lowercase")
		if content == "" {
			return "Provide text after 'lowercase'. Example: 'lowercase HELLO WORLD'"
		}
		return "📝 " + strings.ToLower(content)
	case strings.Contains(lower, "word count"):
		content := trimOf(after(lower, "word count"))
		if content == "" {
			return "Provide text to count words."
		}
		return fmt.Sprintf("📝 Word count: %d", len(strings.Fields(content)))
	case strings.Contains(lower, "character count") || strings.Contains(lower, "char count"):
		content := trimOf(stripWords(lower, "character count", "char count"))
		if content == "" {
			return "Provide text to count characters."
		}
		n := len([]rune(content))
		noSpaces := len([]rune(strings.ReplaceAll(content, " ", "")))
		return fmt.Sprintf("📝 Character count: %d (without spaces: %d)", n, noSpaces)
	case strings.Contains(lower, "reverse"):
		content := after(input, "reverse")
		if content == "" {
			return "Provide text to reverse."
		}
		return "📝 Reversed: " + reverseRunes(content)
	}
	return "Available text tools: uppercase, lowercase, word count, character count, reverse"
}

// after returns the trimmed text following the first case-insensitive
// occurrence of keyword.
func after(text, keyword string) string {
	loc := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(keyword)).FindStringIndex(text)
	if loc == nil {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(text[loc[1]:])
}

func trimOf(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "of ")
	s = strings.TrimPrefix(s, "of:")
	return strings.TrimSpace(strings.Trim(s, `"'`))
}

func reverseRunes(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}
