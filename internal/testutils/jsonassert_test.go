//go:build test

package testutils

import (
	"strings"
	"testing"
)

func TestMustJSON(t *testing.T) {
	t.Run("MarshalsStruct", func(t *testing.T) {
		v := struct {
			Name  string
			Speed float64
		}{Name: "belt", Speed: 2.5}

		got := MustJSON(v)
		if got != `{"Name":"belt","Speed":2.5}` {
			t.Errorf("Unexpected JSON: %s", got)
		}
	})

	t.Run("PanicsOnUnmarshalable", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("Expected panic for an unmarshalable value")
			}
		}()
		MustJSON(make(chan int))
	})
}

func TestJSONAsserter_StructuralEquality(t *testing.T) {
	t.Run("KeyOrderIrrelevant", func(t *testing.T) {
		mockT := &mockTestingT{}
		ja := NewJSONAsserter(mockT)

		ja.Assert(`{"b": 2, "a": 1}`, `{"a": 1, "b": 2}`)

		if mockT.errorCalled {
			t.Errorf("Expected reordered keys to compare equal, got: %s", mockT.errorMessage)
		}
	})

	t.Run("ValueMismatchFails", func(t *testing.T) {
		mockT := &mockTestingT{}
		ja := NewJSONAsserter(mockT)

		ja.Assert(`{"Speed": 2.5}`, `{"Speed": 3.0}`)

		if !mockT.errorCalled {
			t.Error("Expected Errorf for a value mismatch")
		}
		if !strings.Contains(mockT.errorMessage, "JSON assertion failed") {
			t.Errorf("Expected error message to contain 'JSON assertion failed', got: %s", mockT.errorMessage)
		}
	})

	t.Run("NestedMismatchFails", func(t *testing.T) {
		mockT := &mockTestingT{}
		ja := NewJSONAsserter(mockT)

		ja.Assert(`{"device": {"name": "KS-AP-RQ3", "rssi": -60}}`, `{"device": {"name": "KS-AP-RQ3", "rssi": -70}}`)

		if !mockT.errorCalled {
			t.Error("Expected Errorf for a nested mismatch")
		}
	})

	t.Run("ArrayOrderMatters", func(t *testing.T) {
		mockT := &mockTestingT{}
		ja := NewJSONAsserter(mockT)

		ja.Assert(`{"services": ["1826", "180a"]}`, `{"services": ["180a", "1826"]}`)

		if !mockT.errorCalled {
			t.Error("Expected Errorf for reordered array elements")
		}
	})
}

func TestJSONAsserter_IgnoreExtraKeys(t *testing.T) {
	t.Run("ExtraKeysIgnoredByDefault", func(t *testing.T) {
		mockT := &mockTestingT{}
		ja := NewJSONAsserter(mockT)

		ja.Assert(`{"Status": "MANUAL_MODE", "Speed": 2.5, "Steps": 500}`, `{"Status": "MANUAL_MODE", "Speed": 2.5}`)

		if mockT.errorCalled {
			t.Errorf("Expected extra actual keys to be ignored by default, got: %s", mockT.errorMessage)
		}
	})

	t.Run("ExtraKeysFailWhenDisabled", func(t *testing.T) {
		mockT := &mockTestingT{}
		ja := NewJSONAsserter(mockT).WithOptions(
			WithIgnoreExtraKeys(false),
		)

		ja.Assert(`{"Status": "MANUAL_MODE", "Speed": 2.5}`, `{"Status": "MANUAL_MODE"}`)

		if !mockT.errorCalled {
			t.Error("Expected Errorf for extra keys once the option is off")
		}
	})

	t.Run("MissingExpectedKeyStillFails", func(t *testing.T) {
		mockT := &mockTestingT{}
		ja := NewJSONAsserter(mockT)

		ja.Assert(`{"Status": "MANUAL_MODE"}`, `{"Status": "MANUAL_MODE", "Speed": 2.5}`)

		if !mockT.errorCalled {
			t.Error("Expected Errorf when the actual document misses an expected key")
		}
	})
}

func TestJSONAsserter_PresencePlaceholder(t *testing.T) {
	t.Run("AcceptsAnyValue", func(t *testing.T) {
		// firmware strings vary per device; the expectation only requires
		// the key to exist
		mockT := &mockTestingT{}
		ja := NewJSONAsserter(mockT)

		ja.Assert(`{"name": "KS-AP-RQ3-0123", "firmware_revision": "1.2.8"}`,
			`{"name": "KS-AP-RQ3-0123", "firmware_revision": "<<PRESENCE>>"}`)

		if mockT.errorCalled {
			t.Errorf("Expected placeholder to accept any value, got: %s", mockT.errorMessage)
		}
	})

	t.Run("FailsWhenKeyAbsent", func(t *testing.T) {
		mockT := &mockTestingT{}
		ja := NewJSONAsserter(mockT)

		ja.Assert(`{"name": "KS-AP-RQ3-0123"}`, `{"name": "KS-AP-RQ3-0123", "firmware_revision": "<<PRESENCE>>"}`)

		if !mockT.errorCalled {
			t.Error("Expected Errorf when the placeholder key is absent")
		}
	})

	t.Run("LiteralWhenDisabled", func(t *testing.T) {
		mockT := &mockTestingT{}
		ja := NewJSONAsserter(mockT).WithOptions(
			WithAllowPresencePlaceholder(false),
		)

		ja.Assert(`{"firmware_revision": "1.2.8"}`, `{"firmware_revision": "<<PRESENCE>>"}`)

		if !mockT.errorCalled {
			t.Error("Expected the placeholder to compare literally once the option is off")
		}
	})
}

func TestJSONAsserter_IgnoredFields(t *testing.T) {
	t.Run("DifferingIgnoredFieldPasses", func(t *testing.T) {
		mockT := &mockTestingT{}
		ja := NewJSONAsserter(mockT).WithOptions(
			WithIgnoredFields("timestamp"),
		)

		ja.Assert(`{"Status": "IDLE", "timestamp": "2024-03-01T10:00:00Z"}`,
			`{"Status": "IDLE", "timestamp": "2024-03-01T11:30:00Z"}`)

		if mockT.errorCalled {
			t.Errorf("Expected ignored field differences to pass, got: %s", mockT.errorMessage)
		}
	})

	t.Run("IgnoredFieldsApplyInNestedObjects", func(t *testing.T) {
		mockT := &mockTestingT{}
		ja := NewJSONAsserter(mockT).WithOptions(
			WithIgnoredFields("rssi"),
		)

		ja.Assert(`{"device": {"name": "KS-AP-RQ3", "rssi": -60}}`, `{"device": {"name": "KS-AP-RQ3", "rssi": -75}}`)

		if mockT.errorCalled {
			t.Errorf("Expected nested ignored field to pass, got: %s", mockT.errorMessage)
		}
	})
}

func TestJSONAsserter_MalformedInput(t *testing.T) {
	t.Run("InvalidExpected", func(t *testing.T) {
		mockT := &mockTestingT{}
		ja := NewJSONAsserter(mockT)

		ja.Assert(`{"a": 1}`, `{not json`)

		if !mockT.errorCalled {
			t.Error("Expected Errorf for invalid expected JSON")
		}
		if !strings.Contains(mockT.errorMessage, "invalid expected JSON") {
			t.Errorf("Expected error message to blame the expected document, got: %s", mockT.errorMessage)
		}
	})

	t.Run("InvalidActual", func(t *testing.T) {
		mockT := &mockTestingT{}
		ja := NewJSONAsserter(mockT)

		ja.Assert(`{not json`, `{"a": 1}`)

		if !mockT.errorCalled {
			t.Error("Expected Errorf for invalid actual JSON")
		}
		if !strings.Contains(mockT.errorMessage, "invalid actual JSON") {
			t.Errorf("Expected error message to blame the actual document, got: %s", mockT.errorMessage)
		}
	})
}
