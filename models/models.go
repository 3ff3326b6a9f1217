package models

// All lists every model for auto-migration.
func All() []interface{} {
	return []interface{}{
		&User{}, &Post{}, &Comment{}, &Reaction{}, &EventResponse{},
		&Notification{}, &UploadedFile{}, &PageView{},
	}
}
