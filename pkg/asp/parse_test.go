package asp

import (
	"errors"
	"testing"
)

func TestParseFact(t *testing.T) {
	tests := []struct {
		in   string
		want Fact
	}{
		{"42", Number(42)},
		{"-7", Number(-7)},
		{`"cat pirates"`, Text("cat pirates")},
		{`"say \"hi\"\n"`, Text("say \"hi\"\n")},
		{"introduce_character", Atom("introduce_character")},
		{"scene_performs_function(0,introduce_character)",
			Tuple("scene_performs_function", Number(0), Atom("introduce_character"))},
		{"f( g(1, \"x\"), h )", Tuple("f", Tuple("g", Number(1), Text("x")), Atom("h"))},
		{"(1,2)", Tuple("", Number(1), Number(2))},
		{"(1,)", Tuple("", Number(1))},
		{"(5)", Number(5)},
		{"-p(1)", Tuple("-p", Number(1))},
		{"#sup", Atom("#sup")},
		{"x'", Atom("x'")},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFact(tt.in)
			if err != nil {
				t.Fatalf("ParseFact(%q) error = %v", tt.in, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseFact(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseFactErrors(t *testing.T) {
	for _, in := range []string{"", "f(", "f(1 2)", `"open`, "Var", "f(1))", "#foo", "-"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseFact(in)
			if err == nil {
				t.Fatalf("ParseFact(%q) expected error", in)
			}
			var syn *SyntaxError
			if !errors.As(err, &syn) {
				t.Errorf("ParseFact(%q) error = %T, want *SyntaxError", in, err)
			}
		})
	}
}

func TestFactStringRoundTrip(t *testing.T) {
	facts := []Fact{
		Number(-3),
		Text(`quote " and \ slash`),
		Atom("cold"),
		Tuple("scene_introduce_personality", Number(4), Atom("cold")),
		Tuple("", Number(1)),
		Tuple("nested", Tuple("", Number(1), Text("a b")), Atom("z")),
	}
	for _, f := range facts {
		got, err := ParseFact(f.String())
		if err != nil {
			t.Fatalf("ParseFact(%q) error = %v", f.String(), err)
		}
		if !got.Equal(f) {
			t.Errorf("round trip %s = %s", f, got)
		}
	}
}

func TestParseModel(t *testing.T) {
	facts, err := ParseModel(`scene_performs_function(1,describe_setting) note("two words") scene_performs_function(0,introduce_character)`)
	if err != nil {
		t.Fatal(err)
	}
	if len(facts) != 3 {
		t.Fatalf("got %d facts, want 3", len(facts))
	}
	if s, _ := facts[1].Arg(0); !s.Equal(Text("two words")) {
		t.Errorf("string argument = %s", s)
	}

	empty, err := ParseModel("   ")
	if err != nil || len(empty) != 0 {
		t.Errorf("ParseModel(blank) = %v, %v", empty, err)
	}

	if _, err := ParseModel("a(1)b"); err == nil {
		t.Error("expected error for symbols without separator")
	}
}

func TestParseSymbols(t *testing.T) {
	facts, err := ParseSymbols([]string{"a(1)", "b(", "c"})
	if err == nil {
		t.Fatal("expected joined error")
	}
	if len(facts) != 2 {
		t.Errorf("got %d facts, want the 2 parseable ones", len(facts))
	}
}

func TestFactAccessors(t *testing.T) {
	f := Tuple("scene_define_obstacle_type", Number(3), Atom("betrayal"))
	if f.Kind() != KindTuple || f.Name() != "scene_define_obstacle_type" || f.Arity() != 2 {
		t.Fatalf("unexpected tuple %v", f)
	}
	idx, _ := f.Arg(0)
	if n, ok := idx.Int(); !ok || n != 3 {
		t.Errorf("Arg(0).Int() = %d, %v", n, ok)
	}
	if _, ok := f.Arg(2); ok {
		t.Error("Arg(2) should be out of range")
	}
	if Tuple("x").Kind() != KindAtom {
		t.Error("zero-argument tuple should be an atom")
	}

	args := f.Args()
	args[0] = Number(99)
	if a, _ := f.Arg(0); !a.Equal(Number(3)) {
		t.Error("Args() must not alias the fact")
	}
}
