package keyboard

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

func entries(n int) []Entry {
	out := make([]Entry, n)
	for i := range out {
		out[i] = Entry{Text: fmt.Sprintf("B%d", i), CallbackData: fmt.Sprintf("cb%d", i)}
	}
	return out
}

func flatten(markup *tele.ReplyMarkup) []string {
	var out []string
	for _, row := range markup.InlineKeyboard {
		for _, b := range row {
			out = append(out, b.Data)
		}
	}
	return out
}

func TestRenderRowCountAndOrder(t *testing.T) {
	for n := 0; n <= 7; n++ {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			in := entries(n)
			markup := Render(in)
			require.Equal(t, (n+1)/2, RowCount(markup))

			want := make([]string, 0, n)
			for _, e := range in {
				want = append(want, e.CallbackData)
			}
			if n == 0 {
				require.Empty(t, flatten(markup))
				require.NotNil(t, markup.InlineKeyboard)
				return
			}
			require.Equal(t, want, flatten(markup))
			for i, row := range markup.InlineKeyboard {
				if i < len(markup.InlineKeyboard)-1 || n%2 == 0 {
					require.Len(t, row, 2)
				} else {
					require.Len(t, row, 1)
				}
			}
		})
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	in := entries(5)
	require.Equal(t, Render(in), Render(in))
}

func TestRenderLinkEntries(t *testing.T) {
	markup := Render([]Entry{
		{Text: "Site", URL: "https://example.com", CallbackData: "ignored"},
		{Text: "Info", CallbackData: "info"},
	})
	require.Len(t, markup.InlineKeyboard, 1)
	link, cb := markup.InlineKeyboard[0][0], markup.InlineKeyboard[0][1]
	require.Equal(t, "https://example.com", link.URL)
	require.Empty(t, link.Data)
	require.Equal(t, "info", cb.Data)
	require.Empty(t, cb.URL)
}

func TestRenderToleratesEmptyText(t *testing.T) {
	markup := Render([]Entry{{CallbackData: "x"}})
	require.Equal(t, "", markup.InlineKeyboard[0][0].Text)
}

func TestAppendRow(t *testing.T) {
	markup := Render(entries(3))
	AppendRow(markup, Entry{Text: "Home", CallbackData: "back_to_main"})
	AppendRow(markup)
	require.Equal(t, 3, RowCount(markup))
	require.Equal(t, "back_to_main", markup.InlineKeyboard[2][0].Data)
}

func TestChunk(t *testing.T) {
	require.Equal(t, [][]int{{1}, {2}, {3}}, Chunk([]int{1, 2, 3}, 0))
	require.Equal(t, [][]int{{1, 2, 3}, {4}}, Chunk([]int{1, 2, 3, 4}, 3))
	require.Empty(t, Chunk([]int(nil), 2))
}
