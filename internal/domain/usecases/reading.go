package usecases

import "math"

const (
	WordsPerLine   = 12
	LinesPerView   = 10
	wordsPerMinute = 200
)

// ReadingWindow tracks which lines of a document are visible while the cursor moves.
type ReadingWindow struct {
	wordCount int
	start     int // first visible line
}

// NewReadingWindow creates a window over wordCount words starting at the top.
func NewReadingWindow(wordCount int) *ReadingWindow {
	return &ReadingWindow{wordCount: wordCount}
}

// TotalLines returns the number of display lines.
func (w *ReadingWindow) TotalLines() int {
	return (w.wordCount + WordsPerLine - 1) / WordsPerLine
}

// Start returns the first visible line.
func (w *ReadingWindow) Start() int { return w.start }

// Range returns the visible lines as [start, end).
func (w *ReadingWindow) Range() (int, int) {
	end := w.start + LinesPerView
	if total := w.TotalLines(); end > total {
		end = total
	}
	return w.start, end
}

// Follow scrolls so the cursor's line is visible and returns the new start.
// Moving forward keeps the cursor on the last visible line.
func (w *ReadingWindow) Follow(cursor int) int {
	line := cursor / WordsPerLine
	switch {
	case line >= w.start+LinesPerView:
		w.start = line - LinesPerView + 1
	case line < w.start:
		w.start = line
	}
	return w.start
}

// Next pages forward by one view.
func (w *ReadingWindow) Next() int {
	last := w.TotalLines() - LinesPerView
	if last < 0 {
		last = 0
	}
	w.start += LinesPerView
	if w.start > last {
		w.start = last
	}
	return w.start
}

// Previous pages back by one view.
func (w *ReadingWindow) Previous() int {
	w.start -= LinesPerView
	if w.start < 0 {
		w.start = 0
	}
	return w.start
}

// Progress returns how far cursor is through wordCount words, in percent.
func Progress(cursor, wordCount int) float64 {
	if wordCount <= 0 {
		return 0
	}
	return float64(cursor) / float64(wordCount) * 100
}

// EstimatedMinutes returns the reading time at 200 words per minute, rounded up.
func EstimatedMinutes(wordCount int) int {
	return int(math.Ceil(float64(wordCount) / wordsPerMinute))
}

// SpeedSuggestion recommends a narration speed based on document length.
type SpeedSuggestion struct {
	Complexity string  `json:"complexity"`
	Speed      float64 `json:"speed"`
	Hint       string  `json:"hint"`
}

// SuggestSpeed returns a speed suggestion for a document of wordCount words.
func SuggestSpeed(wordCount int) SpeedSuggestion {
	switch {
	case wordCount > 1000:
		return SpeedSuggestion{"high", 0.8, "For complex content, try 0.8x speed for better comprehension"}
	case wordCount > 500:
		return SpeedSuggestion{"medium", 1.0, "Optimal speed: 1.0x for balanced learning"}
	default:
		return SpeedSuggestion{"low", 1.2, "You can increase to 1.2x speed for simple content"}
	}
}
