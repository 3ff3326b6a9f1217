package classifier

import "github.com/campusfeed/campusfeed/feed"

const DefaultDescription = "No description provided."

// Enhance fills an empty title with a type-specific one and an empty
// description with a placeholder. Other fields are left as they are.
func Enhance(pv feed.PostPreview) feed.PostPreview {
	if pv.Title == "" {
		pv.Title = generateTitle(pv)
	}
	if pv.Description == "" {
		pv.Description = DefaultDescription
	}
	return pv
}

func generateTitle(pv feed.PostPreview) string {
	switch pv.Type {
	case feed.TypeEvent:
		return orDefault(pv.Title, "New Event") + " - " + orDefault(pv.Department, "Campus Event")
	case feed.TypeLostFound:
		label := "Lost"
		if pv.ItemType == feed.ItemFound {
			label = "Found"
		}
		return label + ": " + orDefault(pv.ItemName, DefaultItemName)
	case feed.TypeAnnouncement:
		return orDefault(pv.Department, DefaultDepartment) + " Announcement"
	}
	return DefaultTitle
}

// Complete fills the fields a post variant requires but the preview lacks,
// extracting them from the description where possible.
func (c *Classifier) Complete(pv feed.PostPreview) feed.PostPreview {
	e := c.Extractor
	text := pv.Title + ". " + pv.Description
	switch pv.Type {
	case feed.TypeEvent:
		if pv.Location == "" {
			pv.Location = e.Location(pv.Description)
		}
		if pv.Date == "" {
			pv.Date = e.Date(text)
		}
		if pv.Time == "" {
			pv.Time = e.Time(text)
		}
	case feed.TypeLostFound:
		if pv.ItemType == "" {
			pv.ItemType = feed.ItemLost
		}
		if pv.ItemName == "" {
			pv.ItemName = e.ItemName(text)
		}
		if pv.Location == "" {
			pv.Location = e.Location(pv.Description)
		}
	case feed.TypeAnnouncement:
		if pv.Department == "" {
			pv.Department = e.Department(text)
		}
	}
	return pv
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
