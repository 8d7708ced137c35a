package domain

// Session es el contexto explícito del usuario autenticado.
// Se pasa a cada caso de uso en lugar de leer estado global de perfil/permisos.
type Session struct {
	CompanyID string
	UserID    string
	Email     string
	Roles     []string
}

// HasRole indica si la sesión tiene alguno de los roles dados.
func (s Session) HasRole(roles ...string) bool {
	for _, have := range s.Roles {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Validate exige empresa y usuario; sin ellos no hay aislamiento de tenant.
func (s Session) Validate() error {
	if s.CompanyID == "" || s.UserID == "" {
		return E(KindPermissionDenied, "session", ErrUnauthorized)
	}
	return nil
}
