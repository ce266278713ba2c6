package model

// User is the authenticated principal. Credentials live with the external auth provider.
type User struct {
	ID          uint         `db:"id" gorm:"primaryKey"`
	Username    string       `db:"username" gorm:"size:150;uniqueIndex;not null"`
	Groups      []Group      `gorm:"many2many:user_groups;"`
	Permissions []Permission `gorm:"many2many:user_permissions;"`
}

// Group bundles permissions; tiers are groups.
type Group struct {
	ID          uint         `db:"id" gorm:"primaryKey"`
	Name        string       `db:"name" gorm:"size:150;uniqueIndex;not null"`
	Permissions []Permission `gorm:"many2many:group_permissions;"`
}

// Permission is a named grant such as "thumbnail:200" or "can_access_original_image".
type Permission struct {
	ID       uint   `db:"id" gorm:"primaryKey"`
	Codename string `db:"codename" gorm:"size:100;uniqueIndex;not null"`
	Name     string `db:"name" gorm:"size:255"`
}
