package graph

import (
	"reflect"
	"strings"
	"testing"

	"github.com/pkoukk/tiktoken-go"
)

func newSplitClient(t *testing.T, maxUnitTokens int) *BuilderClient {
	t.Helper()
	encoder, err := tiktoken.GetEncoding("o200k_base")
	if err != nil {
		t.Fatalf("GetEncoding() error = %v", err)
	}
	return &BuilderClient{encoder: encoder, maxUnitTokens: maxUnitTokens}
}

func TestSplitIntoSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "empty input",
			text: "",
			want: []string(nil),
		},
		{
			name: "single sentence",
			text: "Hello world.",
			want: []string{"Hello world."},
		},
		{
			name: "multiple sentences",
			text: "Hello world. This is a test! How are you?",
			want: []string{
				"Hello world.",
				"This is a test!",
				"How are you?",
			},
		},
		{
			name: "sentences with empty lines",
			text: "First sentence.\n\nSecond sentence.\n\nThird sentence.",
			want: []string{
				"First sentence.",
				"Second sentence.",
				"Third sentence.",
			},
		},
		{
			name: "multi-line sentence",
			text: "This is a long\nsentence that spans\nmultiple lines.",
			want: []string{"This is a long sentence that spans multiple lines."},
		},
		{
			name: "markdown table as single sentence",
			text: "Header1 | Header2\n------- | -------\nValue1  | Value2\nValue3  | Value4",
			want: []string{
				"Header1 | Header2\n------- | -------\nValue1  | Value2\nValue3  | Value4",
			},
		},
		{
			name: "text with table",
			text: "Introduction text.\nHeader1 | Header2\n------- | -------\nValue1  | Value2\nConclusion text.",
			want: []string{
				"Introduction text.",
				"Header1 | Header2\n------- | -------\nValue1  | Value2",
				"Conclusion text.",
			},
		},
		{
			name: "table without delimiter",
			text: "Header1 | Header2\nValue1  | Value2",
			want: []string{
				"Header1 | Header2",
				"Value1  | Value2",
			},
		},
		{
			name: "text with no punctuation",
			text: "Just some text without punctuation\nMore text here",
			want: []string{"Just some text without punctuation More text here"},
		},
		{
			name: "mixed content",
			text: "Start here.\n\n| Col1 | Col2 |\n|------|------|\n| Val1 | Val2 |\n\nEnd here!",
			want: []string{
				"Start here.",
				"| Col1 | Col2 |\n|------|------|\n| Val1 | Val2 |",
				"End here!",
			},
		},
		{
			name: "numeric listing should stay in same sentence",
			text: "Today we discuss three points. 1. First item 2. Second item 3. Third item. Done!",
			want: []string{
				"Today we discuss three points.",
				"1. First item 2. Second item 3. Third item.",
				"Done!",
			},
		},
		{
			name: "cjk sentence terminators",
			text: "供给曲线表示价格与供给量的关系。需求曲线则相反！",
			want: []string{
				"供给曲线表示价格与供给量的关系。",
				"需求曲线则相反！",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitIntoSentences(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("splitIntoSentences() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestSplitIntoUnits(t *testing.T) {
	tests := []struct {
		name          string
		text          string
		maxUnitTokens int
		wantTexts     []string
	}{
		{
			name:          "single sentence under limit",
			text:          "Hello world.",
			maxUnitTokens: 10,
			wantTexts:     []string{"Hello world."},
		},
		{
			name:          "multiple sentences under limit",
			text:          "First sentence. Second sentence.",
			maxUnitTokens: 20,
			wantTexts:     []string{"First sentence. Second sentence."},
		},
		{
			name:          "sentences split by token limit",
			text:          "First sentence. Second sentence. Third sentence.",
			maxUnitTokens: 1,
			wantTexts: []string{
				"First sentence.",
				"Second sentence.",
				"Third sentence.",
			},
		},
		{
			name:          "table as single unit",
			text:          "| Header1 | Header2 |\n|---------|---------|\n| Value1  | Value2  |",
			maxUnitTokens: 10,
			wantTexts:     []string{"| Header1 | Header2 |\n|---------|---------|\n| Value1  | Value2  |"},
		},
		{
			name:          "empty text",
			text:          "",
			maxUnitTokens: 10,
			wantTexts:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newSplitClient(t, tt.maxUnitTokens)
			got := c.splitIntoUnits(tt.text)

			if len(got) != len(tt.wantTexts) {
				t.Fatalf("splitIntoUnits() returned %d units, want %d", len(got), len(tt.wantTexts))
			}
			for i, unit := range got {
				if unit.Index != i {
					t.Errorf("unit[%d].Index = %d", i, unit.Index)
				}
				if unit.Tokens <= 0 {
					t.Errorf("unit[%d].Tokens = %d, expected positive", i, unit.Tokens)
				}
				if strings.TrimSpace(unit.Text) != strings.TrimSpace(tt.wantTexts[i]) {
					t.Errorf("unit[%d].Text = %q, want %q", i, unit.Text, tt.wantTexts[i])
				}
			}
		})
	}
}
