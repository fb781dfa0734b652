package forms

import "fmt"

type Operator string

const (
	OperatorEquals    Operator = "Equals"
	OperatorNotEquals Operator = "NotEquals"
	OperatorIn        Operator = "In"
)

func (o Operator) valid() bool {
	switch o {
	case OperatorEquals, OperatorNotEquals, OperatorIn:
		return true
	}
	return false
}

// DisplayLogic shows its question only when the referenced earlier question's answer
// satisfies Operator. Equals and NotEquals compare against Value; In against Values.
type DisplayLogic struct {
	QuestionID string   `json:"questionId"`
	Operator   Operator `json:"operator"`
	Value      string   `json:"value,omitempty"`
	Values     []string `json:"values,omitempty"`
}

func (l *DisplayLogic) clone() *DisplayLogic {
	if l == nil {
		return nil
	}
	c := *l
	if l.Values != nil {
		c.Values = append([]string(nil), l.Values...)
	}
	return &c
}

func (l *DisplayLogic) Equal(other *DisplayLogic) bool {
	if l == nil || other == nil {
		return l == other
	}
	if l.QuestionID != other.QuestionID || l.Operator != other.Operator || l.Value != other.Value {
		return false
	}
	if len(l.Values) != len(other.Values) {
		return false
	}
	for i := range l.Values {
		if l.Values[i] != other.Values[i] {
			return false
		}
	}
	return true
}

// referencedValues returns every value the rule compares against.
func (l *DisplayLogic) referencedValues() []string {
	if l.Operator == OperatorIn {
		return l.Values
	}
	return []string{l.Value}
}

// shapeViolations checks the rule on its own, without the owning form.
func (l *DisplayLogic) shapeViolations(path string) []Violation {
	var vs []Violation
	if l.QuestionID == "" {
		vs = append(vs, Violation{Path: path, Message: "questionId is required"})
	}
	if !l.Operator.valid() {
		vs = append(vs, Violation{Path: path, Message: fmt.Sprintf("unknown operator %q", l.Operator)})
		return vs
	}
	switch l.Operator {
	case OperatorIn:
		if len(l.Values) == 0 {
			vs = append(vs, Violation{Path: path, Message: "In requires at least one value"})
		}
		if l.Value != "" {
			vs = append(vs, Violation{Path: path, Message: "In takes values, not value"})
		}
	default:
		if l.Value == "" {
			vs = append(vs, Violation{Path: path, Message: fmt.Sprintf("%s requires a value", l.Operator)})
		}
		if len(l.Values) > 0 {
			vs = append(vs, Violation{Path: path, Message: fmt.Sprintf("%s takes value, not values", l.Operator)})
		}
	}
	return vs
}

// withoutValue drops optionID from the rule. It returns nil when nothing is left to compare against.
func (l *DisplayLogic) withoutValue(optionID string) *DisplayLogic {
	c := l.clone()
	if c.Operator == OperatorIn {
		kept := c.Values[:0]
		for _, v := range c.Values {
			if v != optionID {
				kept = append(kept, v)
			}
		}
		if len(kept) == 0 {
			return nil
		}
		c.Values = kept
		return c
	}
	if c.Value == optionID {
		return nil
	}
	return c
}
