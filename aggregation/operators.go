package aggregation

import (
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Operator construction helpers. Each returns an *Expr carrying the wire
// operator keyword and an initial payload shape; rendering is entirely the
// Expr's recursive algorithm. Values may be literals, Field references, or
// nested Expressions.

// ---------------------------------------------------------------- arithmetic

// Add builds $add with positional arguments.
func Add(values ...any) *Expr { return NewListExpr("$add", values...) }

// Subtract builds $subtract.
func Subtract(minuend, subtrahend any) *Expr {
	return NewListExpr("$subtract", minuend, subtrahend)
}

// Multiply builds $multiply with positional arguments.
func Multiply(values ...any) *Expr { return NewListExpr("$multiply", values...) }

// Divide builds $divide.
func Divide(dividend, divisor any) *Expr { return NewListExpr("$divide", dividend, divisor) }

// Mod builds $mod.
func Mod(dividend, divisor any) *Expr { return NewListExpr("$mod", dividend, divisor) }

// Pow builds $pow.
func Pow(base, exponent any) *Expr { return NewListExpr("$pow", base, exponent) }

// Abs builds $abs.
func Abs(value any) *Expr { return NewExpr("$abs", value) }

// Ceil builds $ceil.
func Ceil(value any) *Expr { return NewExpr("$ceil", value) }

// Floor builds $floor.
func Floor(value any) *Expr { return NewExpr("$floor", value) }

// Sqrt builds $sqrt.
func Sqrt(value any) *Expr { return NewExpr("$sqrt", value) }

// Trunc builds $trunc.
func Trunc(value any) *Expr { return NewExpr("$trunc", value) }

// Round builds $round with the given place.
func Round(value, place any) *Expr { return NewListExpr("$round", value, place) }

// ------------------------------------------------------ comparison / boolean

// Eq builds $eq.
func Eq(a, b any) *Expr { return NewListExpr("$eq", a, b) }

// Ne builds $ne.
func Ne(a, b any) *Expr { return NewListExpr("$ne", a, b) }

// Gt builds $gt.
func Gt(a, b any) *Expr { return NewListExpr("$gt", a, b) }

// Gte builds $gte.
func Gte(a, b any) *Expr { return NewListExpr("$gte", a, b) }

// Lt builds $lt.
func Lt(a, b any) *Expr { return NewListExpr("$lt", a, b) }

// Lte builds $lte.
func Lte(a, b any) *Expr { return NewListExpr("$lte", a, b) }

// Cmp builds $cmp.
func Cmp(a, b any) *Expr { return NewListExpr("$cmp", a, b) }

// AndExpr builds $and over expressions.
func AndExpr(values ...any) *Expr { return NewListExpr("$and", values...) }

// OrExpr builds $or over expressions.
func OrExpr(values ...any) *Expr { return NewListExpr("$or", values...) }

// NotExpr builds $not.
func NotExpr(value any) *Expr { return NewListExpr("$not", value) }

// ------------------------------------------------------------------- strings

// Concat builds $concat with positional arguments.
func Concat(values ...any) *Expr { return NewListExpr("$concat", values...) }

// ToUpper builds $toUpper.
func ToUpper(value any) *Expr { return NewExpr("$toUpper", value) }

// ToLower builds $toLower.
func ToLower(value any) *Expr { return NewExpr("$toLower", value) }

// StrLenCP builds $strLenCP.
func StrLenCP(value any) *Expr { return NewExpr("$strLenCP", value) }

// Split builds $split.
func Split(value, delimiter any) *Expr { return NewListExpr("$split", value, delimiter) }

// Trim builds $trim on the given input.
func Trim(input any) *Expr {
	return NewEntriesExpr("$trim", bson.D{{Key: "input", Value: input}})
}

// --------------------------------------------------------------------- dates

// Year builds $year.
func Year(value any) *Expr { return NewExpr("$year", value) }

// Month builds $month.
func Month(value any) *Expr { return NewExpr("$month", value) }

// DayOfMonth builds $dayOfMonth.
func DayOfMonth(value any) *Expr { return NewExpr("$dayOfMonth", value) }

// Hour builds $hour.
func Hour(value any) *Expr { return NewExpr("$hour", value) }

// Minute builds $minute.
func Minute(value any) *Expr { return NewExpr("$minute", value) }

// Second builds $second.
func Second(value any) *Expr { return NewExpr("$second", value) }

// Millisecond builds $millisecond.
func Millisecond(value any) *Expr { return NewExpr("$millisecond", value) }

// DateToString builds $dateToString for the given date and format.
func DateToString(date any, format string) *Expr {
	return NewEntriesExpr("$dateToString", bson.D{
		{Key: "format", Value: format},
		{Key: "date", Value: date},
	})
}

// -------------------------------------------------------------- accumulators

// AccumulatorFactory builds accumulator expressions over one input value.
type AccumulatorFactory struct {
	value any
}

// ValueOf starts an accumulator over a field name, Field, or expression.
func ValueOf(v any) AccumulatorFactory {
	if s, ok := v.(string); ok {
		return AccumulatorFactory{value: NewField(s)}
	}
	return AccumulatorFactory{value: v}
}

// Sum builds $sum over the input.
func (f AccumulatorFactory) Sum() *Expr { return NewExpr("$sum", f.value) }

// Avg builds $avg over the input.
func (f AccumulatorFactory) Avg() *Expr { return NewExpr("$avg", f.value) }

// Min builds $min over the input.
func (f AccumulatorFactory) Min() *Expr { return NewExpr("$min", f.value) }

// Max builds $max over the input.
func (f AccumulatorFactory) Max() *Expr { return NewExpr("$max", f.value) }

// First builds $first over the input.
func (f AccumulatorFactory) First() *Expr { return NewExpr("$first", f.value) }

// Last builds $last over the input.
func (f AccumulatorFactory) Last() *Expr { return NewExpr("$last", f.value) }

// Push builds $push over the input.
func (f AccumulatorFactory) Push() *Expr { return NewExpr("$push", f.value) }

// AddToSet builds $addToSet over the input.
func (f AccumulatorFactory) AddToSet() *Expr { return NewExpr("$addToSet", f.value) }

// StdDevPop builds $stdDevPop over the input.
func (f AccumulatorFactory) StdDevPop() *Expr { return NewExpr("$stdDevPop", f.value) }

// StdDevSamp builds $stdDevSamp over the input.
func (f AccumulatorFactory) StdDevSamp() *Expr { return NewExpr("$stdDevSamp", f.value) }

// CountAll builds the {$sum: 1} document-count accumulator.
func CountAll() *Expr { return NewExpr("$sum", 1) }

// ---------------------------------------------------------------- conversion

// convertTypes is the server's type identifier table. Numeric identifiers
// normalize to the string form at construction; 8 must render as the literal
// "bool" token.
var convertTypes = map[int]string{
	1:  "double",
	2:  "string",
	7:  "objectId",
	8:  "bool",
	9:  "date",
	16: "int",
	18: "long",
	19: "decimal",
}

// Convert is the $convert expression with named input/to/onError/onNull
// arguments.
type Convert struct {
	expr *Expr
}

// ConvertValue starts a $convert over the given input value.
func ConvertValue(input any) Convert {
	return Convert{expr: NewEntriesExpr("$convert", bson.D{{Key: "input", Value: input}})}
}

// ConvertValueOf starts a $convert over the given field reference.
func ConvertValueOf(field string) Convert {
	return ConvertValue(NewField(field))
}

// To sets the conversion target via its string identifier.
func (c Convert) To(typeIdentifier string) Convert {
	return Convert{expr: c.expr.withEntry("to", typeIdentifier)}
}

// ToNumeric sets the conversion target via its numeric identifier, which is
// normalized to the string form. Unknown identifiers are rejected.
func (c Convert) ToNumeric(typeIdentifier int) (Convert, error) {
	name, ok := convertTypes[typeIdentifier]
	if !ok {
		return Convert{}, errors.Errorf("aggregation: unknown convert type identifier %d", typeIdentifier)
	}
	return c.To(name), nil
}

// ToTypeOf sets the conversion target to the type of the given field's value.
func (c Convert) ToTypeOf(field string) Convert {
	return Convert{expr: c.expr.withEntry("to", NewField(field))}
}

// OnErrorReturn sets the value returned when conversion fails.
func (c Convert) OnErrorReturn(v any) Convert {
	return Convert{expr: c.expr.withEntry("onError", v)}
}

// OnNullReturn sets the value returned when the input is null or missing.
func (c Convert) OnNullReturn(v any) Convert {
	return Convert{expr: c.expr.withEntry("onNull", v)}
}

// Expr returns the underlying expression node.
func (c Convert) Expr() *Expr { return c.expr }

// Render implements Expression.
func (c Convert) Render(ctx Context) (bson.D, error) { return c.expr.Render(ctx) }

// ToBool builds the $toBool shorthand.
func ToBool(value any) *Expr { return NewExpr("$toBool", value) }

// ToInt builds the $toInt shorthand.
func ToInt(value any) *Expr { return NewExpr("$toInt", value) }

// ToLong builds the $toLong shorthand.
func ToLong(value any) *Expr { return NewExpr("$toLong", value) }

// ToDouble builds the $toDouble shorthand.
func ToDouble(value any) *Expr { return NewExpr("$toDouble", value) }

// ToDecimal builds the $toDecimal shorthand.
func ToDecimal(value any) *Expr { return NewExpr("$toDecimal", value) }

// ToDate builds the $toDate shorthand.
func ToDate(value any) *Expr { return NewExpr("$toDate", value) }

// ToString builds the $toString shorthand.
func ToString(value any) *Expr { return NewExpr("$toString", value) }

// ToObjectID builds the $toObjectId shorthand.
func ToObjectID(value any) *Expr { return NewExpr("$toObjectId", value) }

// -------------------------------------------------------------------- script

// Function builds a $function expression with the given JavaScript body. Args
// default to the empty list and lang to "js".
func Function(body string) *Expr {
	return NewEntriesExpr("$function", bson.D{
		{Key: "body", Value: body},
		{Key: "args", Value: bson.A{}},
		{Key: "lang", Value: "js"},
	})
}

// FunctionArgs returns a $function with the given arguments bound.
func FunctionArgs(fn *Expr, args ...any) *Expr {
	return fn.withEntry("args", bson.A(args))
}
