package extract

import (
	"reflect"
	"testing"

	"calscan/internal/model"
)

func TestTimePatternOrder(t *testing.T) {
	want := []string{
		"hm-meridiem-range",
		"hm-range",
		"meridiem-range",
		"hm-meridiem",
		"h-meridiem",
		"hm-bare",
	}
	if got := TimePatternNames(); !reflect.DeepEqual(got, want) {
		t.Fatalf("TimePatternNames() = %v, want %v", got, want)
	}
}

func TestExtractTime(t *testing.T) {
	clock := func(h, m int) *model.Clock { return &model.Clock{Hour: h, Minute: m} }

	tests := []struct {
		in       string
		start    model.Clock
		end      *model.Clock
		residual string
	}{
		{"9:00 AM - 10:30 AM", model.Clock{Hour: 9}, clock(10, 30), ""},
		{"14:30", model.Clock{Hour: 14, Minute: 30}, nil, ""},
		{"3:00", model.Clock{Hour: 15}, nil, ""},
		{"Staff Meeting 3pm", model.Clock{Hour: 15}, nil, "Staff Meeting"},
		{"12:00 AM Lock-in", model.Clock{}, nil, "Lock-in"},
		{"Lunch 12 PM", model.Clock{Hour: 12}, nil, "Lunch"},
		{"9:00 - 10:00 Assembly", model.Clock{Hour: 9}, clock(10, 0), "Assembly"},
		{"1:00 - 3:00 Field Day", model.Clock{Hour: 13}, clock(15, 0), "Field Day"},
		{"9am-11am Book Fair", model.Clock{Hour: 9}, clock(11, 0), "Book Fair"},
		{"6:30 - 8:00 PM Concert", model.Clock{Hour: 18, Minute: 30}, clock(20, 0), "Concert"},
		{"11:00 - 1:00 PM Picnic", model.Clock{Hour: 11}, clock(13, 0), "Picnic"},
		{"Dance 10:00 PM - 1:00 AM", model.Clock{Hour: 22}, clock(1, 0), "Dance"},
		{"Concert 7:00 PM - 9 PM", model.Clock{Hour: 19}, clock(21, 0), "Concert"},
		{"Game 7 PM - 9:30 PM", model.Clock{Hour: 19}, clock(21, 30), "Game"},
	}
	for _, tt := range tests {
		span, residual, ok := ExtractTime(tt.in)
		if !ok {
			t.Errorf("ExtractTime(%q) found nothing", tt.in)
			continue
		}
		if span.Start != tt.start {
			t.Errorf("ExtractTime(%q) start = %v, want %v", tt.in, span.Start, tt.start)
		}
		if !reflect.DeepEqual(span.End, tt.end) {
			t.Errorf("ExtractTime(%q) end = %v, want %v", tt.in, span.End, tt.end)
		}
		if residual != tt.residual {
			t.Errorf("ExtractTime(%q) residual = %q, want %q", tt.in, residual, tt.residual)
		}
	}
}

func TestExtractTimeNoMatch(t *testing.T) {
	for _, in := range []string{
		"3",
		"Pep Rally",
		"10 amazing volunteers",
		"7:61 typo",
		"Recital 7:61 PM",
	} {
		if span, _, ok := ExtractTime(in); ok {
			t.Errorf("ExtractTime(%q) = %v, want no match", in, span)
		}
	}
}
