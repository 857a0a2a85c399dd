package logging

import (
	"time"

	"github.com/felixgeelhaar/bolt/v3"
	"github.com/warp/contract-engine/generic"
)

// Field is a function that applies structured data to a log event.
type Field func(*bolt.Event) *bolt.Event

// ContractID adds a contract_id field.
func ContractID(id generic.ContractID) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("contract_id", string(id))
	}
}

// ContractNumber adds a contract_number field.
func ContractNumber(n generic.ContractNumber) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("contract_number", string(n))
	}
}

// Product adds a product field.
func Product(p generic.ProductID) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("product", string(p))
	}
}

// FromStatus adds a from_status field for transitions.
func FromStatus(s generic.Status) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("from_status", string(s))
	}
}

// ToStatus adds a to_status field for transitions.
func ToStatus(s generic.Status) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("to_status", string(s))
	}
}

// Actor adds the acting user and role.
func Actor(id generic.ActorID, role generic.Role) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("actor", string(id)).Str("role", string(role))
	}
}

// Amount adds a currency amount in whole units.
func Amount(key string, m generic.Money) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int64(key, m.Int64())
	}
}

// Duration adds a duration field in milliseconds.
func Duration(d time.Duration) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int64("duration_ms", d.Milliseconds())
	}
}

// Validated adds the reconciliation tolerance check result.
func Validated(ok bool) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Bool("validated", ok)
	}
}

// ErrorField adds an error field.
func ErrorField(err error) Field {
	return func(e *bolt.Event) *bolt.Event {
		if err == nil {
			return e
		}
		return e.Err(err)
	}
}

// Component adds a component field for categorization.
func Component(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("component", name)
	}
}

// Str adds a string field with custom key.
func Str(key, value string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str(key, value)
	}
}
