package index

// SegmentRef identifies a segment within one index build. Refs are dense and
// assigned in build order, so comparing refs compares first-seen order.
type SegmentRef int

type Posting struct {
	Segment   SegmentRef `json:"segment"`
	Frequency int        `json:"frequency"`
	Positions []int      `json:"positions"`
}

type PostingList []Posting

type TermEntry struct {
	Term     string      `json:"term"`
	Postings PostingList `json:"postings"`
}

type Stats struct {
	Segments int `json:"segments"`
	Terms    int `json:"terms"`
	Postings int `json:"postings"`
	Tokens   int `json:"tokens"`
}
