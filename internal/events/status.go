package events

type Category string

const (
	CategoryMusic      Category = "music"
	CategorySports     Category = "sports"
	CategoryTechnology Category = "technology"
	CategoryBusiness   Category = "business"
	CategoryArts       Category = "arts"
	CategoryEducation  Category = "education"
	CategoryOther      Category = "other"
)

func (c Category) IsValid() bool {
	switch c {
	case CategoryMusic, CategorySports, CategoryTechnology, CategoryBusiness,
		CategoryArts, CategoryEducation, CategoryOther:
		return true
	}
	return false
}

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

func (v Visibility) IsValid() bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}
