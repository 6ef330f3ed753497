package session

// Role classifies a shift session. The backend decides the role when the
// shift is started; the client never promotes a role on its own.
type Role string

const (
	RoleOperator Role = "operador"
	RoleAdmin    Role = "admin"
)

// ShiftRecord identifies the operator and working date for one shift login.
// It is distinct from the bearer auth credential: the auth token represents
// the durable account identity and survives shift restarts.
type ShiftRecord struct {
	ShiftSessionID    int64  `json:"registro_turno_id"`
	OperatorFirstName string `json:"operador_nombre"`
	OperatorLastName  string `json:"operador_apellido"`
	Date              string `json:"fecha"` // YYYY-MM-DD
	Role              Role   `json:"rol"`
}

// Valid reports whether the record identifies a usable shift session.
func (r *ShiftRecord) Valid() bool {
	return r != nil && r.ShiftSessionID > 0
}

// IsAdmin reports whether the shift was granted the admin role.
func (r *ShiftRecord) IsAdmin() bool {
	return r.Valid() && r.Role == RoleAdmin
}

// ExtrasState is the elevation state of the session. The zero value is
// disabled. Enabled is true exactly when a token is held, so the
// "enabled flag without a token" state is unrepresentable.
type ExtrasState struct {
	token string
}

// ExtrasEnabled builds an enabled state carrying the given token.
func ExtrasEnabled(token string) ExtrasState {
	return ExtrasState{token: token}
}

func (s ExtrasState) Enabled() bool {
	return s.token != ""
}

func (s ExtrasState) Token() string {
	return s.token
}
