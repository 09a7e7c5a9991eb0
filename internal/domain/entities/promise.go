package entities

// PromiseType distinguishes CVE claims from free-text bug-fix claims
type PromiseType string

// Promise types
const (
	PromiseCVE    PromiseType = "cve"
	PromiseBugFix PromiseType = "bug_fix"
)

// BugClass is a category of defect a behavioral probe can exercise
type BugClass string

// Bug classes recognised in release notes. Only some have probes in the catalog.
const (
	BugClassBufferOverflow  BugClass = "buffer_overflow"
	BugClassMemoryLeak      BugClass = "memory_leak"
	BugClassNullPointer     BugClass = "null_pointer"
	BugClassIntegerOverflow BugClass = "integer_overflow"
	BugClassInputValidation BugClass = "input_validation"
	BugClassUseAfterFree    BugClass = "use_after_free"
	BugClassRaceCondition   BugClass = "race_condition"
	BugClassDenialOfService BugClass = "denial_of_service"
	BugClassAuthBypass      BugClass = "auth_bypass"
	BugClassInformationLeak BugClass = "information_leak"
)

// Promise sources
const (
	PromiseSourceReleaseNotes = "release_notes"
	PromiseSourceFile         = "promise_file"
)

// Promise is a claim that a release fixes something
type Promise struct {
	Type        PromiseType `json:"type" yaml:"type"`
	ID          string      `json:"id" yaml:"id"`
	Description string      `json:"description" yaml:"description"`
	BugClass    BugClass    `json:"bug_class,omitempty" yaml:"bug_class"`
	Source      string      `json:"source" yaml:"source"`
	RawLine     string      `json:"raw_line,omitempty" yaml:"-"`
}
