package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/sifan077/PowerImage/internal/app/model"
	"gorm.io/gorm"
)

var (
	// ErrGroupNotFound signals that a named group does not exist.
	ErrGroupNotFound = errors.New("group not found")
	// ErrPermissionNotFound signals that a codename is not registered.
	ErrPermissionNotFound = errors.New("permission not found")
)

// PermissionRepository loads and manages grants. It satisfies
// permission.Source and permission.Seeder.
type PermissionRepository interface {
	DirectCodenames(ctx context.Context, userID uint) ([]string, error)
	GroupCodenames(ctx context.Context, userID uint) ([]string, error)
	EnsurePermission(ctx context.Context, codename, name string) error
	EnsureGroup(ctx context.Context, name string, codenames ...string) error
	EnsureUser(ctx context.Context, id uint, username string) (*model.User, error)
	AddUserToGroup(ctx context.Context, userID uint, groupName string) error
	GrantUserPermission(ctx context.Context, userID uint, codename string) error
}

type permissionRepository struct {
	db *gorm.DB
}

// NewPermissionRepository returns a GORM-backed PermissionRepository.
func NewPermissionRepository(db *gorm.DB) PermissionRepository {
	return &permissionRepository{db: db}
}

func (r *permissionRepository) DirectCodenames(ctx context.Context, userID uint) ([]string, error) {
	var codenames []string
	err := r.db.WithContext(ctx).
		Model(&model.Permission{}).
		Joins("JOIN user_permissions ON user_permissions.permission_id = permissions.id").
		Where("user_permissions.user_id = ?", userID).
		Pluck("permissions.codename", &codenames).Error
	return codenames, err
}

func (r *permissionRepository) GroupCodenames(ctx context.Context, userID uint) ([]string, error) {
	var codenames []string
	err := r.db.WithContext(ctx).
		Model(&model.Permission{}).
		Distinct("permissions.codename").
		Joins("JOIN group_permissions ON group_permissions.permission_id = permissions.id").
		Joins("JOIN user_groups ON user_groups.group_id = group_permissions.group_id").
		Where("user_groups.user_id = ?", userID).
		Pluck("permissions.codename", &codenames).Error
	return codenames, err
}

func (r *permissionRepository) EnsurePermission(ctx context.Context, codename, name string) error {
	var perm model.Permission
	return r.db.WithContext(ctx).
		Where(model.Permission{Codename: codename}).
		Attrs(model.Permission{Name: name}).
		FirstOrCreate(&perm).Error
}

func (r *permissionRepository) EnsureGroup(ctx context.Context, name string, codenames ...string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var group model.Group
		if err := tx.Where(model.Group{Name: name}).FirstOrCreate(&group).Error; err != nil {
			return err
		}
		if len(codenames) == 0 {
			return nil
		}

		var perms []model.Permission
		if err := tx.Where("codename IN ?", codenames).Find(&perms).Error; err != nil {
			return err
		}
		if len(perms) != len(codenames) {
			return fmt.Errorf("%w: group %s wants %d, found %d", ErrPermissionNotFound, name, len(codenames), len(perms))
		}
		return tx.Model(&group).Association("Permissions").Append(&perms)
	})
}

func (r *permissionRepository) EnsureUser(ctx context.Context, id uint, username string) (*model.User, error) {
	user := model.User{ID: id}
	if err := r.db.WithContext(ctx).
		Where(model.User{ID: id}).
		Attrs(model.User{Username: username}).
		FirstOrCreate(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *permissionRepository) AddUserToGroup(ctx context.Context, userID uint, groupName string) error {
	var group model.Group
	if err := r.db.WithContext(ctx).Where("name = ?", groupName).First(&group).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrGroupNotFound
		}
		return err
	}
	return r.db.WithContext(ctx).Model(&model.User{ID: userID}).Association("Groups").Append(&group)
}

func (r *permissionRepository) GrantUserPermission(ctx context.Context, userID uint, codename string) error {
	var perm model.Permission
	if err := r.db.WithContext(ctx).Where("codename = ?", codename).First(&perm).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPermissionNotFound
		}
		return err
	}
	return r.db.WithContext(ctx).Model(&model.User{ID: userID}).Association("Permissions").Append(&perm)
}
