package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestReconcilerError(t *testing.T) {
	tests := []struct {
		name       string
		category   ErrorCategory
		code       ErrorCode
		message    string
		cause      error
		expectCode int
	}{
		{
			name:       "file error",
			category:   CategoryFile,
			code:       CodeFileNotFound,
			message:    "file not found",
			cause:      errors.New("no such file"),
			expectCode: 2,
		},
		{
			name:       "schema error",
			category:   CategoryValidation,
			code:       CodeSchemaError,
			message:    "missing invoice number",
			expectCode: 3,
		},
		{
			name:       "configuration error",
			category:   CategoryConfiguration,
			code:       CodeInvalidConfig,
			message:    "invalid config",
			cause:      errors.New("missing field"),
			expectCode: 4,
		},
		{
			name:       "empty input",
			category:   CategoryReconciliation,
			code:       CodeEmptyInput,
			message:    "nothing to do",
			expectCode: 5,
		},
		{
			name:       "export error",
			category:   CategoryExport,
			code:       CodeWriteFailed,
			message:    "disk full",
			cause:      errors.New("no space left on device"),
			expectCode: 6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err *ReconcilerError
			if tt.cause != nil {
				err = Wrap(tt.cause, tt.category, tt.code, tt.message)
			} else {
				err = New(tt.category, tt.code, tt.message)
			}

			if err.Category != tt.category {
				t.Errorf("expected category %s, got %s", tt.category, err.Category)
			}
			if err.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, err.Code)
			}
			if err.GetExitCode() != tt.expectCode {
				t.Errorf("expected exit code %d, got %d", tt.expectCode, err.GetExitCode())
			}
			if err.Error() != tt.message {
				t.Errorf("expected error string %s, got %s", tt.message, err.Error())
			}
			if tt.cause != nil && err.Unwrap() != tt.cause {
				t.Errorf("expected to unwrap to %v, got %v", tt.cause, err.Unwrap())
			}
			if len(err.StackTrace) == 0 {
				t.Error("expected a captured stack trace")
			}
		})
	}
}

func TestReconcilerErrorWithContext(t *testing.T) {
	err := New(CategoryFile, CodeFileNotFound, "test error").
		WithContext("file", "/path/to/purchase.csv").
		WithContext("line", 42).
		WithSuggestion("check file path")

	if err.Context["file"] != "/path/to/purchase.csv" {
		t.Errorf("expected file context, got %v", err.Context["file"])
	}
	if err.Context["line"] != 42 {
		t.Errorf("expected line context 42, got %v", err.Context["line"])
	}

	expected := "test error (suggestion: check file path)"
	if err.Error() != expected {
		t.Errorf("expected error string '%s', got '%s'", expected, err.Error())
	}
}

func TestSchemaError(t *testing.T) {
	err := SchemaError("book", 3, "invoice_number")

	if err.Code != CodeSchemaError {
		t.Errorf("expected schema code, got %s", err.Code)
	}
	if err.Category != CategoryValidation {
		t.Errorf("expected validation category, got %s", err.Category)
	}
	if err.Context["side"] != "book" || err.Context["index"] != 3 || err.Context["field"] != "invoice_number" {
		t.Errorf("unexpected context: %v", err.Context)
	}
}

func TestEmptyInputError(t *testing.T) {
	err := EmptyInputError("reconcile")

	if err.Code != CodeEmptyInput {
		t.Errorf("expected empty input code, got %s", err.Code)
	}
	if err.Suggestion == "" {
		t.Error("expected a suggestion")
	}
}

func TestIsCodeThroughWrapping(t *testing.T) {
	base := EmptyInputError("aggregate")
	wrapped := fmt.Errorf("service: %w", base)

	if !IsCode(wrapped, CodeEmptyInput) {
		t.Error("expected IsCode to find empty_input through fmt wrapping")
	}
	if IsCode(wrapped, CodeSchemaError) {
		t.Error("did not expect schema_error")
	}
	if IsCode(errors.New("plain"), CodeEmptyInput) {
		t.Error("plain errors carry no code")
	}
}

func TestSpecificErrorConstructors(t *testing.T) {
	t.Run("FileError", func(t *testing.T) {
		err := FileError(CodeFilePermission, "/test/gstr2a.csv", errors.New("permission denied"))
		if err.Category != CategoryFile {
			t.Errorf("expected file category, got %s", err.Category)
		}
		if err.Context["file_path"] != "/test/gstr2a.csv" {
			t.Errorf("expected file_path context, got %v", err.Context["file_path"])
		}
	})

	t.Run("ParseError", func(t *testing.T) {
		err := ParseError(CodeMissingColumn, "purchase.csv", 1, "headers", "Invoice_Number", nil)
		if err.Category != CategoryParse {
			t.Errorf("expected parse category, got %s", err.Category)
		}
		if err.Message != "missing required column 'Invoice_Number' in file purchase.csv" {
			t.Errorf("unexpected message: %s", err.Message)
		}
	})

	t.Run("ValidationError", func(t *testing.T) {
		err := ValidationError(CodeInvalidAmount, "CGST", "abc", nil)
		if err.Code != CodeInvalidAmount {
			t.Errorf("expected invalid amount code, got %s", err.Code)
		}
		if err.Context["value"] != "abc" {
			t.Errorf("expected value context, got %v", err.Context["value"])
		}
	})

	t.Run("ExportError", func(t *testing.T) {
		cause := errors.New("broken pipe")
		err := ExportError("xlsx", cause)
		if !errors.Is(err, cause) {
			t.Error("expected export error to wrap its cause")
		}
	})
}

func TestWrapIfNeeded(t *testing.T) {
	if WrapIfNeeded(nil, CategoryInternal, CodeUnexpectedError, "x") != nil {
		t.Error("nil should stay nil")
	}

	original := SchemaError("return", 0, "invoice_number")
	if got := WrapIfNeeded(original, CategoryInternal, CodeUnexpectedError, "x"); got != original {
		t.Error("expected existing ReconcilerError to be returned as is")
	}

	got := WrapIfNeeded(errors.New("boom"), CategoryInternal, CodeUnexpectedError, "wrapped")
	if got.Code != CodeUnexpectedError || got.Message != "wrapped" {
		t.Errorf("unexpected wrap result: %+v", got)
	}
}

func TestErrorSummary(t *testing.T) {
	empty := NewErrorSummary(nil)
	if empty.Total != 0 || empty.Error() != "no errors" {
		t.Errorf("unexpected empty summary: %+v", empty)
	}

	var errs []*ReconcilerError
	for i := 0; i < 7; i++ {
		errs = append(errs, ParseError(CodeInvalidData, "f.csv", i+2, "CGST", "x", nil))
	}
	errs = append(errs, SchemaError("book", 0, "invoice_number"))

	summary := NewErrorSummary(errs)
	if summary.Total != 8 {
		t.Errorf("expected 8 errors, got %d", summary.Total)
	}
	if len(summary.SampleErrors) != 5 {
		t.Errorf("expected 5 samples, got %d", len(summary.SampleErrors))
	}
	if !summary.HasCode(CodeSchemaError) || summary.HasCode(CodeEmptyInput) {
		t.Error("HasCode mismatch")
	}
	if summary.Error() != "8 errors occurred (parse: 7, validation: 1)" {
		t.Errorf("unexpected summary string: %s", summary.Error())
	}
}
