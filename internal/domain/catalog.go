package domain

// Language is an entry of the language catalog users pick preferences from.
type Language struct {
	ID   int64
	Name string
	Code string
}

// Category groups stories in the catalog.
type Category struct {
	ID   int64
	Name string
}
