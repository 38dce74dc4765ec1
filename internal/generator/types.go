package generator

// DocSection is one heading of a rendered Markdown book and the text under it.
type DocSection struct {
	ID      string // stable hash of file name and title
	Title   string
	Level   int    // 1 for #, 2 for ##, 0 for text before the first heading
	Content string // heading line included
}
