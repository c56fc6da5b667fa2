package grading

import "testing"

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
	}{
		{in: "mcq", want: KindMCQ},
		{in: "MCQ", want: KindMCQ},
		{in: "multiple-choice", want: KindMultipleChoice},
		{in: " Multiple-Choice ", want: KindMultipleChoice},
		{in: "short-answer", want: KindShortAnswer},
		{in: "descriptive", want: KindDescriptive},
		{in: "essay", want: KindMCQ},
		{in: "", want: KindMCQ},
	}
	for _, tt := range tests {
		if got := ParseKind(tt.in); got != tt.want {
			t.Errorf("ParseKind(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestKind_RoundTrip(t *testing.T) {
	for _, k := range []Kind{KindMCQ, KindMultipleChoice, KindShortAnswer, KindDescriptive} {
		if got := ParseKind(k.String()); got != k {
			t.Errorf("ParseKind(%q) = %v, want %v", k.String(), got, k)
		}
	}
}

func TestKind_IsChoice(t *testing.T) {
	if !KindMCQ.IsChoice() || !KindMultipleChoice.IsChoice() {
		t.Error("choice kinds should report IsChoice")
	}
	if KindShortAnswer.IsChoice() || KindDescriptive.IsChoice() {
		t.Error("free-text kinds should not report IsChoice")
	}
}
