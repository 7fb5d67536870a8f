package directory

import (
	"disposisi/internal/auth/models"
	"disposisi/pkg/domain"
)

// BuiltinUsers is the default office roster. No entry carries a credential.
func BuiltinUsers() []*models.User {
	return []*models.User{
		{ID: "tu1", Username: "admin", Name: "Administrator TU", Role: domain.RoleTU},

		{ID: "coord1", Username: "suwati", Name: "Suwati, S.h", Role: domain.RoleCoordinator},
		{ID: "coord2", Username: "achmad", Name: "Achmad Evianto", Role: domain.RoleCoordinator},
		{ID: "coord3", Username: "adi", Name: "Adi Sulaksono", Role: domain.RoleCoordinator},

		{ID: "staff1", Username: "ahmad.fauzi", Name: "Ahmad Fauzi", Role: domain.RoleStaff},
		{ID: "staff2", Username: "roza.erlinda", Name: "Roza Erlinda", Role: domain.RoleStaff},
		{ID: "staff3", Username: "rita.juwita", Name: "Rita Juwita", Role: domain.RoleStaff},
		{ID: "staff4", Username: "fanni.arlina", Name: "Fanni Arlina Sutia", Role: domain.RoleStaff},
		{ID: "staff5", Username: "hendi.inda", Name: "Hendi Inda Karnia", Role: domain.RoleStaff},
		{ID: "staff6", Username: "ainaya.octaviyanti", Name: "Ainaya Octaviyanti", Role: domain.RoleStaff},
		{ID: "staff7", Username: "ade.ashriah", Name: "Ade Ashriah", Role: domain.RoleStaff},
		{ID: "staff8", Username: "fajar.aris", Name: "Fajar Aris K", Role: domain.RoleStaff},
		{ID: "staff9", Username: "arum.kesuma", Name: "Arum Kesuma D", Role: domain.RoleStaff},
		{ID: "staff10", Username: "andryansyah", Name: "Andryansyah", Role: domain.RoleStaff},
	}
}

// Builtin returns a directory over BuiltinUsers.
func Builtin() *Directory {
	d, err := New(BuiltinUsers())
	if err != nil {
		panic(err) // roster is static; a failure here is a programming error
	}
	return d
}
