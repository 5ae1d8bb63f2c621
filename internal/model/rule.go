package model

import (
	"math"
	"regexp"
)

// Rule triggers actions when its conditions match a transaction on the
// trigger account. Conditions are implicitly AND-combined.
type Rule struct {
	ID                string      `json:"id"`
	Name              string      `json:"name"`
	Description       string      `json:"description,omitempty"`
	Enabled           bool        `json:"enabled"`
	TriggerAccountKey string      `json:"trigger_account_key"`
	Conditions        []Condition `json:"conditions"`
	Actions           []Action    `json:"actions"`
	CreatedAt         int64       `json:"created_at"`
	UpdatedAt         int64       `json:"updated_at"`
}

// Matches reports whether all of the rule's conditions hold for the
// transaction. An empty condition list matches everything.
func (r *Rule) Matches(tx *Transaction) bool {
	for _, c := range r.Conditions {
		if !c.Evaluate(tx) {
			return false
		}
	}
	return true
}

// ConditionType discriminates the condition variants.
type ConditionType string

// Condition variants.
const (
	ConditionDescriptionMatches ConditionType = "description_matches"
	ConditionAmountGreaterThan  ConditionType = "amount_greater_than"
	ConditionAmountLessThan     ConditionType = "amount_less_than"
	ConditionAmountBetween      ConditionType = "amount_between"
	ConditionAmountEquals       ConditionType = "amount_equals"
	ConditionTransactionType    ConditionType = "transaction_type"
	ConditionIsSettled          ConditionType = "is_settled"
	ConditionAnd                ConditionType = "and"
	ConditionOr                 ConditionType = "or"
	ConditionNot                ConditionType = "not"
)

// DefaultAmountTolerance is used for amount_equals when no tolerance is set.
const DefaultAmountTolerance = 0.01

// Condition is a recursive predicate over a transaction. Type selects the
// variant; only the fields belonging to that variant are meaningful.
type Condition struct {
	Type            ConditionType `json:"type"`
	Pattern         string        `json:"pattern,omitempty"`
	CaseInsensitive bool          `json:"case_insensitive,omitempty"`
	Value           float64       `json:"value,omitempty"`
	Min             float64       `json:"min,omitempty"`
	Max             float64       `json:"max,omitempty"`
	Tolerance       *float64      `json:"tolerance,omitempty"`
	TypeCode        string        `json:"type_code,omitempty"`
	Conditions      []Condition   `json:"conditions,omitempty"`
	Condition       *Condition    `json:"condition,omitempty"`
}

// Evaluate applies the condition to a transaction. Evaluation is pure and
// total: a malformed pattern or an unknown variant evaluates to false rather
// than failing, so one bad rule cannot destabilize a poll cycle.
func (c Condition) Evaluate(tx *Transaction) bool {
	switch c.Type {
	case ConditionDescriptionMatches:
		pattern := c.Pattern
		if c.CaseInsensitive {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}
		return re.MatchString(tx.DisplayDescription())

	case ConditionAmountGreaterThan:
		return tx.Amount > c.Value

	case ConditionAmountLessThan:
		return tx.Amount < c.Value

	case ConditionAmountBetween:
		return tx.Amount >= c.Min && tx.Amount <= c.Max

	case ConditionAmountEquals:
		tolerance := DefaultAmountTolerance
		if c.Tolerance != nil {
			tolerance = *c.Tolerance
		}
		return math.Abs(tx.Amount-c.Value) <= tolerance

	case ConditionTransactionType:
		return tx.TypeCode == c.TypeCode

	case ConditionIsSettled:
		return tx.Settled()

	case ConditionAnd:
		for _, sub := range c.Conditions {
			if !sub.Evaluate(tx) {
				return false
			}
		}
		return true

	case ConditionOr:
		for _, sub := range c.Conditions {
			if sub.Evaluate(tx) {
				return true
			}
		}
		return false

	case ConditionNot:
		if c.Condition == nil {
			return false
		}
		return !c.Condition.Evaluate(tx)

	default:
		return false
	}
}

// DescriptionMatches builds a regex condition over the transaction
// description. The pattern is searched, not anchored.
func DescriptionMatches(pattern string, caseInsensitive bool) Condition {
	return Condition{Type: ConditionDescriptionMatches, Pattern: pattern, CaseInsensitive: caseInsensitive}
}

// AmountGreaterThan builds a signed-amount comparison condition.
func AmountGreaterThan(value float64) Condition {
	return Condition{Type: ConditionAmountGreaterThan, Value: value}
}

// AmountLessThan builds a signed-amount comparison condition.
func AmountLessThan(value float64) Condition {
	return Condition{Type: ConditionAmountLessThan, Value: value}
}

// AmountBetween builds an inclusive range condition on the signed amount.
func AmountBetween(minValue, maxValue float64) Condition {
	return Condition{Type: ConditionAmountBetween, Min: minValue, Max: maxValue}
}

// AmountEquals builds an equals-with-tolerance condition.
func AmountEquals(value, tolerance float64) Condition {
	return Condition{Type: ConditionAmountEquals, Value: value, Tolerance: &tolerance}
}

// TransactionTypeIs builds a type-code equality condition.
func TransactionTypeIs(typeCode string) Condition {
	return Condition{Type: ConditionTransactionType, TypeCode: typeCode}
}

// IsSettled builds a condition that holds only for booked transactions.
func IsSettled() Condition {
	return Condition{Type: ConditionIsSettled}
}

// And combines conditions; an empty list is vacuously true.
func And(conditions ...Condition) Condition {
	return Condition{Type: ConditionAnd, Conditions: conditions}
}

// Or combines conditions; an empty list is vacuously false.
func Or(conditions ...Condition) Condition {
	return Condition{Type: ConditionOr, Conditions: conditions}
}

// Not negates a condition.
func Not(condition Condition) Condition {
	return Condition{Type: ConditionNot, Condition: &condition}
}

// ActionType discriminates the action variants.
type ActionType string

// Action variants.
const (
	ActionTransfer ActionType = "transfer"
)

// Action is something a rule does when it fires.
type Action struct {
	Type        ActionType `json:"type"`
	FromAccount AccountRef `json:"from_account"`
	ToAccount   AccountRef `json:"to_account"`
	Amount      AmountSpec `json:"amount"`
	Message     string     `json:"message,omitempty"`
}

// AccountRefType discriminates the account reference variants.
type AccountRefType string

// Account reference variants.
const (
	AccountRefTrigger  AccountRefType = "trigger_account"
	AccountRefByKey    AccountRefType = "by_key"
	AccountRefByNumber AccountRefType = "by_number"
)

// AccountRef is a late-bound pointer to an account, resolved against the
// live account list when an action executes.
type AccountRef struct {
	Type   AccountRefType `json:"type"`
	Key    string         `json:"key,omitempty"`
	Number string         `json:"number,omitempty"`
}

// TriggerAccount references the account whose transactions fired the rule.
func TriggerAccount() AccountRef {
	return AccountRef{Type: AccountRefTrigger}
}

// ByKey references an account by its bank key.
func ByKey(key string) AccountRef {
	return AccountRef{Type: AccountRefByKey, Key: key}
}

// ByNumber references an account by its account number.
func ByNumber(number string) AccountRef {
	return AccountRef{Type: AccountRefByNumber, Number: number}
}

// AmountSpecType discriminates the amount specification variants.
type AmountSpecType string

// Amount specification variants.
const (
	AmountFixed          AmountSpecType = "fixed"
	AmountTransaction    AmountSpecType = "transaction_amount"
	AmountTransactionAbs AmountSpecType = "transaction_amount_abs"
	AmountPercentage     AmountSpecType = "percentage"
	AmountMin            AmountSpecType = "min"
	AmountMax            AmountSpecType = "max"
)

// AmountSpec computes a transfer amount from a transaction.
type AmountSpec struct {
	Type          AmountSpecType `json:"type"`
	Value         float64        `json:"value,omitempty"`
	OfTransaction float64        `json:"of_transaction,omitempty"`
	Specs         []AmountSpec   `json:"specs,omitempty"`
}

// Resolve computes the amount for a transaction. Resolution is pure and
// total: min/max over an empty list and unknown variants resolve to 0.
func (s AmountSpec) Resolve(tx *Transaction) float64 {
	switch s.Type {
	case AmountFixed:
		return s.Value

	case AmountTransaction:
		return tx.Amount

	case AmountTransactionAbs:
		return math.Abs(tx.Amount)

	case AmountPercentage:
		return math.Abs(tx.Amount) * (s.OfTransaction / 100.0)

	case AmountMin:
		return s.fold(tx, func(candidate, best float64) bool { return candidate < best })

	case AmountMax:
		return s.fold(tx, func(candidate, best float64) bool { return candidate > best })

	default:
		return 0
	}
}

// fold reduces sub-spec results with the given comparison. NaN never wins a
// comparison, which keeps the fold stable for degenerate configurations.
func (s AmountSpec) fold(tx *Transaction, better func(candidate, best float64) bool) float64 {
	result := 0.0
	found := false
	for _, sub := range s.Specs {
		value := sub.Resolve(tx)
		if !found || better(value, result) {
			result = value
			found = true
		}
	}
	return result
}

// Fixed builds a constant amount spec.
func Fixed(value float64) AmountSpec {
	return AmountSpec{Type: AmountFixed, Value: value}
}

// TransactionAmount builds a spec returning the signed transaction amount.
func TransactionAmount() AmountSpec {
	return AmountSpec{Type: AmountTransaction}
}

// TransactionAmountAbs builds a spec returning the absolute transaction amount.
func TransactionAmountAbs() AmountSpec {
	return AmountSpec{Type: AmountTransactionAbs}
}

// Percentage builds a spec returning a percentage of the absolute
// transaction amount.
func Percentage(ofTransaction float64) AmountSpec {
	return AmountSpec{Type: AmountPercentage, OfTransaction: ofTransaction}
}

// MinOf builds a spec returning the smallest of its sub-specs.
func MinOf(specs ...AmountSpec) AmountSpec {
	return AmountSpec{Type: AmountMin, Specs: specs}
}

// MaxOf builds a spec returning the largest of its sub-specs.
func MaxOf(specs ...AmountSpec) AmountSpec {
	return AmountSpec{Type: AmountMax, Specs: specs}
}
