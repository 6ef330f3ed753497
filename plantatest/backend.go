// Package plantatest runs an in-process stand-in for the shop-floor backend.
// Package tests point an api.Client at it to exercise full request/response
// flows, including the elevation exchange and the archive/purge guards,
// without a real server.
package plantatest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/kpsoft/kp-planta/auth/extrastoken"
	"golang.org/x/crypto/bcrypt"
)

const DefaultExtrasKey = "clave-extras-0"

type user struct {
	ID           string
	FirstName    string
	LastName     string
	Email        string
	Username     string
	PasswordHash string
	Role         string
	Active       bool
}

type pedido struct {
	ID                  int64  `json:"id"`
	CodigoProducto      string `json:"codigo_producto"`
	DescripcionProducto string `json:"descripcion_producto"`
	MaquinaAsignada     string `json:"maquina_asignada"`
	TipoPlanchaID       int64  `json:"tipo_plancha_id"`
	EspesorMM           string `json:"espesor_mm"`
	MedidaPlancha       string `json:"medida_plancha"`
	VariacionMaterial   string `json:"variacion_material"`
	PlanchasAsignadas   int    `json:"planchas_asignadas"`
	UltimaPlancha       int    `json:"ultima_plancha_trabajada"`
	CortesTotales       int    `json:"cortes_totales"`
	Estado              string `json:"estado"`
	EsArchivado         int    `json:"es_archivado"`
	FechaRegistro       string `json:"fecha_registro"`
}

type anomalia struct {
	ID            int64  `json:"id"`
	Maquina       string `json:"maquina"`
	Descripcion   string `json:"descripcion"`
	Estado        string `json:"estado"`
	Solucion      string `json:"solucion,omitempty"`
	EsArchivado   int    `json:"es_archivado"`
	FechaRegistro string `json:"fecha_registro"`
}

type catalogItem struct {
	ID     int64  `json:"id"`
	Nombre string `json:"nombre"`
}

// Backend is the fake server plus direct accessors for seeding and
// asserting. All methods are safe for concurrent use.
type Backend struct {
	srv *httptest.Server

	mu            sync.Mutex
	extrasKey     string
	adminKey      string
	users         map[string]*user // keyed by email and username
	bearers       map[string]*user
	shifts        map[int64]string // shift id -> role
	nextShiftID   int64
	pedidos       map[int64]*pedido
	nextPedidoID  int64
	anomalias     map[int64]*anomalia
	nextAnomID    int64
	tiposPlancha  []catalogItem
	variaciones   []catalogItem
	asignaciones  map[int64][]int64
	pendingPwd    map[string]bool // user id -> pending password change
	requestCounts map[string]int
	now           func() time.Time
}

type Option func(*Backend)

func WithExtrasKey(key string) Option {
	return func(b *Backend) {
		b.extrasKey = key
	}
}

func WithNow(now func() time.Time) Option {
	return func(b *Backend) {
		b.now = now
	}
}

func New(options ...Option) *Backend {
	b := &Backend{
		extrasKey: DefaultExtrasKey,
		adminKey:  "admin-key-" + uuid.NewString()[:8],
		users:     make(map[string]*user),
		bearers:   make(map[string]*user),
		shifts:    make(map[int64]string),
		pedidos:   make(map[int64]*pedido),
		anomalias: make(map[int64]*anomalia),
		tiposPlancha: []catalogItem{
			{ID: 1, Nombre: "Acero inoxidable"},
			{ID: 2, Nombre: "Aluminio"},
		},
		variaciones: []catalogItem{
			{ID: 1, Nombre: "Mate"},
			{ID: 2, Nombre: "Brillante"},
		},
		asignaciones:  make(map[int64][]int64),
		pendingPwd:    make(map[string]bool),
		requestCounts: make(map[string]int),
		now:           time.Now,
	}
	for _, opt := range options {
		opt(b)
	}

	r := mux.NewRouter()
	r.Use(b.countRequests)

	r.HandleFunc("/api/auth/login", b.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/register", b.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/logout", b.handleLogout).Methods(http.MethodPost)
	r.HandleFunc("/api/registro-turno/iniciar", b.handleStartShift).Methods(http.MethodPost)
	r.HandleFunc("/api/extras/elevate", b.handleElevate).Methods(http.MethodPost)
	r.HandleFunc("/api/admin/extras-key/rotate", b.handleRotate).Methods(http.MethodPost)
	r.HandleFunc("/api/admin/status", b.handleAdminStatus).Methods(http.MethodGet)

	r.HandleFunc("/api/pedidos", b.handleListPedidos).Methods(http.MethodGet)
	r.HandleFunc("/api/pedidos", b.handleCreatePedido).Methods(http.MethodPost)
	r.HandleFunc("/api/pedidos/{id}", b.handleGetPedido).Methods(http.MethodGet)
	r.HandleFunc("/api/pedidos/{id}/actualizar", b.handleUpdatePedido).Methods(http.MethodPost)
	r.HandleFunc("/api/pedidos/{id}/{action:archivar|restaurar}", b.handleArchivePedido).Methods(http.MethodPost)
	r.HandleFunc("/api/admin/purge/pedidos/{scope:range|all}", b.handlePurgePedidos).Methods(http.MethodPost)

	r.HandleFunc("/api/anomalias", b.handleListAnomalias).Methods(http.MethodGet)
	r.HandleFunc("/api/anomalias", b.handleCreateAnomalia).Methods(http.MethodPost)
	r.HandleFunc("/api/anomalias/{id}", b.handleGetAnomalia).Methods(http.MethodGet)
	r.HandleFunc("/api/anomalias/{id}/actualizar", b.handleUpdateAnomalia).Methods(http.MethodPost)
	r.HandleFunc("/api/anomalias/{id}/{action:archivar|restaurar}", b.handleArchiveAnomalia).Methods(http.MethodPost)
	r.HandleFunc("/api/admin/purge/anomalias/{scope:range|all}", b.handlePurgeAnomalias).Methods(http.MethodPost)

	r.HandleFunc("/api/admin/export/{resource:pedidos|anomalias}.csv", b.handleExportCSV).Methods(http.MethodGet)

	r.HandleFunc("/api/catalogos", b.handleCatalogos).Methods(http.MethodGet)
	r.HandleFunc("/api/admin/catalogos/{action:create|update|delete}", b.handleAdminCatalogos).Methods(http.MethodPost)
	r.HandleFunc("/api/admin/variaciones/{action:asignar|desasignar}", b.handleVariaciones).Methods(http.MethodPost)

	r.HandleFunc("/api/admin/usuarios", b.handleListUsuarios).Methods(http.MethodGet)
	r.HandleFunc("/api/admin/usuarios/{action:create|update|toggle}", b.handleAdminUsuarios).Methods(http.MethodPost)
	r.HandleFunc("/api/admin/usuarios/password-change/{action:approve|cancel}", b.handlePasswordChange).Methods(http.MethodPost)
	r.HandleFunc("/api/admin/usuarios/password-change/pending", b.handlePendingPasswordChanges).Methods(http.MethodGet)

	b.srv = httptest.NewServer(r)
	return b
}

func (b *Backend) Close() {
	b.srv.Close()
}

func (b *Backend) URL() string {
	return b.srv.URL
}

// AdminKey returns the secondary credential the backend issues for admin
// shifts.
func (b *Backend) AdminKey() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.adminKey
}

// ExtrasKey returns the current elevation secret.
func (b *Backend) ExtrasKey() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.extrasKey
}

// SetExtrasKey replaces the elevation secret directly, simulating a rotation
// performed from another session.
func (b *Backend) SetExtrasKey(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.extrasKey = key
}

// Requests returns how many calls the given path has received.
func (b *Backend) Requests(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requestCounts[path]
}

// AddUser registers an account. The identifier works as both email and
// username for login purposes.
func (b *Backend) AddUser(identifier, password string, admin bool) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	role := "operador"
	if admin {
		role = "admin"
	}
	u := &user{
		ID:           uuid.NewString(),
		FirstName:    "Test",
		LastName:     identifier,
		Email:        identifier,
		Username:     identifier,
		PasswordHash: string(hash),
		Role:         role,
		Active:       true,
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users[identifier] = u
}

// SeedShift registers a shift session directly and returns its id.
func (b *Backend) SeedShift(role string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextShiftID++
	b.shifts[b.nextShiftID] = role
	return b.nextShiftID
}

// SeedPedido inserts a work order directly and returns its id.
func (b *Backend) SeedPedido(estado string, archived bool) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextPedidoID++
	flag := 0
	if archived {
		flag = 1
	}
	b.pedidos[b.nextPedidoID] = &pedido{
		ID:                  b.nextPedidoID,
		CodigoProducto:      fmt.Sprintf("P-%03d", b.nextPedidoID),
		DescripcionProducto: "Plancha de prueba",
		MaquinaAsignada:     "CNC-1",
		TipoPlanchaID:       1,
		EspesorMM:           "3",
		MedidaPlancha:       "1000x2000",
		VariacionMaterial:   "Mate",
		PlanchasAsignadas:   10,
		Estado:              estado,
		EsArchivado:         flag,
		FechaRegistro:       b.now().Format("2006-01-02"),
	}
	return b.nextPedidoID
}

// SeedAnomalia inserts an anomaly directly and returns its id.
func (b *Backend) SeedAnomalia(estado string, archived bool) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextAnomID++
	flag := 0
	if archived {
		flag = 1
	}
	b.anomalias[b.nextAnomID] = &anomalia{
		ID:            b.nextAnomID,
		Maquina:       "CNC-1",
		Descripcion:   "Vibración anómala en el cabezal",
		Estado:        estado,
		EsArchivado:   flag,
		FechaRegistro: b.now().Format("2006-01-02"),
	}
	return b.nextAnomID
}

// countRequests tallies calls per path for "backend never called" assertions.
func (b *Backend) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.requestCounts[r.URL.Path]++
		b.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

// ---- envelope helpers ----

func sendOK(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "data": data})
}

func sendErr(w http.ResponseWriter, status int, code, message string, fields map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	errBody := map[string]any{"code": code, "message": message}
	if len(fields) > 0 {
		errBody["fields"] = fields
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": errBody})
}

func decode(r *http.Request, out any) error {
	return json.NewDecoder(r.Body).Decode(out)
}

// ---- guards ----

func (b *Backend) bearerUser(r *http.Request) *user {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bearers[parts[1]]
}

func (b *Backend) adminGuard(w http.ResponseWriter, r *http.Request) bool {
	b.mu.Lock()
	key := b.adminKey
	b.mu.Unlock()
	if r.Header.Get("X-Admin-Key") != key {
		sendErr(w, http.StatusUnauthorized, "UNAUTHORIZED", "Acceso administrador requerido.", nil)
		return false
	}
	return true
}

func (b *Backend) extrasGuard(w http.ResponseWriter, r *http.Request) bool {
	token := r.Header.Get("X-Extras-Token")
	if token == "" {
		sendErr(w, http.StatusForbidden, "EXTRAS_REQUIRED", "Modo extras requerido.", nil)
		return false
	}
	b.mu.Lock()
	key := b.extrasKey
	b.mu.Unlock()
	if _, err := extrastoken.Validate(token, key); err != nil {
		sendErr(w, http.StatusForbidden, "EXTRAS_REQUIRED", "Token extras inválido.", nil)
		return false
	}
	return true
}

func (b *Backend) hasExtras(r *http.Request) bool {
	token := r.Header.Get("X-Extras-Token")
	if token == "" {
		return false
	}
	b.mu.Lock()
	key := b.extrasKey
	b.mu.Unlock()
	_, err := extrastoken.Validate(token, key)
	return err == nil
}

// ---- auth ----

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var dto struct {
		Identificador string `json:"identificador"`
		Password      string `json:"password"`
	}
	if err := decode(r, &dto); err != nil {
		sendErr(w, http.StatusBadRequest, "VALIDATION_ERROR", "Cuerpo inválido.", nil)
		return
	}

	b.mu.Lock()
	u := b.users[strings.TrimSpace(dto.Identificador)]
	b.mu.Unlock()

	if u == nil || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(dto.Password)) != nil {
		sendErr(w, http.StatusUnauthorized, "AUTH_INVALID", "Credenciales inválidas.", nil)
		return
	}
	if !u.Active {
		sendErr(w, http.StatusForbidden, "AUTH_DENIED", "Usuario desactivado.", nil)
		return
	}

	token := uuid.NewString()
	b.mu.Lock()
	b.bearers[token] = u
	b.mu.Unlock()

	sendOK(w, http.StatusOK, map[string]any{
		"token": token,
		"usuario": map[string]any{
			"id":       u.ID,
			"nombre":   u.FirstName,
			"apellido": u.LastName,
			"email":    u.Email,
			"rol":      u.Role,
		},
	})
}

func (b *Backend) handleRegister(w http.ResponseWriter, r *http.Request) {
	var dto struct {
		Nombre   string `json:"nombre"`
		Apellido string `json:"apellido"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Username string `json:"username"`
	}
	if err := decode(r, &dto); err != nil {
		sendErr(w, http.StatusBadRequest, "VALIDATION_ERROR", "Cuerpo inválido.", nil)
		return
	}
	if len(dto.Password) < 8 {
		sendErr(w, http.StatusBadRequest, "VALIDATION_ERROR", "La contraseña debe tener al menos 8 caracteres.", nil)
		return
	}
	b.mu.Lock()
	_, exists := b.users[dto.Email]
	b.mu.Unlock()
	if exists {
		sendErr(w, http.StatusBadRequest, "VALIDATION_ERROR", "El email ya está registrado.", nil)
		return
	}
	b.AddUser(dto.Email, dto.Password, false)
	sendOK(w, http.StatusOK, map[string]any{"message": "OK"})
}

func (b *Backend) handleLogout(w http.ResponseWriter, r *http.Request) {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		sendErr(w, http.StatusUnauthorized, "AUTH_REQUIRED", "Se requiere iniciar sesión.", nil)
		return
	}
	b.mu.Lock()
	delete(b.bearers, parts[1])
	b.mu.Unlock()
	sendOK(w, http.StatusOK, map[string]any{"message": "OK"})
}

func (b *Backend) handleStartShift(w http.ResponseWriter, r *http.Request) {
	var dto struct {
		OperadorNombre   string `json:"operador_nombre"`
		OperadorApellido string `json:"operador_apellido"`
	}
	if err := decode(r, &dto); err != nil {
		sendErr(w, http.StatusBadRequest, "VALIDATION_ERROR", "Cuerpo inválido.", nil)
		return
	}

	fields := map[string]string{}
	if len(strings.TrimSpace(dto.OperadorNombre)) < 2 {
		fields["operador_nombre"] = "Mínimo 2 caracteres."
	}
	if len(strings.TrimSpace(dto.OperadorApellido)) < 2 {
		fields["operador_apellido"] = "Mínimo 2 caracteres."
	}
	if len(fields) > 0 {
		sendErr(w, http.StatusBadRequest, "VALIDATION_ERROR", "Hay campos inválidos.", fields)
		return
	}

	role := "operador"
	if u := b.bearerUser(r); u != nil && u.Role == "admin" {
		role = "admin"
	}

	b.mu.Lock()
	b.nextShiftID++
	shiftID := b.nextShiftID
	b.shifts[shiftID] = role
	adminKey := b.adminKey
	b.mu.Unlock()

	data := map[string]any{
		"registro_turno_id": shiftID,
		"fecha":             b.now().Format("2006-01-02"),
		"rol":               role,
	}
	if role == "admin" {
		data["admin_key"] = adminKey
	}
	sendOK(w, http.StatusCreated, data)
}

// ---- extras ----

func (b *Backend) handleElevate(w http.ResponseWriter, r *http.Request) {
	var dto struct {
		ShiftSessionID int64  `json:"registro_turno_id"`
		ExtrasKey      string `json:"extras_key"`
	}
	if err := decode(r, &dto); err != nil || dto.ShiftSessionID <= 0 {
		sendErr(w, http.StatusBadRequest, "VALIDATION_ERROR", "registro_turno_id inválido.", nil)
		return
	}

	b.mu.Lock()
	_, shiftExists := b.shifts[dto.ShiftSessionID]
	key := b.extrasKey
	b.mu.Unlock()
	if !shiftExists {
		sendErr(w, http.StatusNotFound, "NOT_FOUND", "Registro de turno no encontrado.", nil)
		return
	}

	b.mu.Lock()
	adminKey := b.adminKey
	b.mu.Unlock()

	secret := strings.TrimSpace(dto.ExtrasKey)
	if secret == "" {
		sendErr(w, http.StatusBadRequest, "VALIDATION_ERROR", "Ingrese la clave de extras.", nil)
		return
	}
	adminElevation := secret == adminKey && r.Header.Get("X-Admin-Key") == adminKey
	if !adminElevation && secret != key {
		sendErr(w, http.StatusUnauthorized, "UNAUTHORIZED", "Clave incorrecta, intente nuevamente.", nil)
		return
	}

	token, err := extrastoken.Mint(key, dto.ShiftSessionID, b.now(), extrastoken.DefaultTTL)
	if err != nil {
		sendErr(w, http.StatusInternalServerError, "DB_ERROR", "Error al activar modo extras.", nil)
		return
	}
	sendOK(w, http.StatusOK, map[string]any{"token": token})
}

func (b *Backend) handleRotate(w http.ResponseWriter, r *http.Request) {
	if !b.adminGuard(w, r) {
		return
	}
	if !b.extrasGuard(w, r) {
		return
	}

	var dto struct {
		Current string `json:"extras_key_current"`
		New     string `json:"extras_key_new"`
	}
	if err := decode(r, &dto); err != nil {
		sendErr(w, http.StatusBadRequest, "VALIDATION_ERROR", "Cuerpo inválido.", nil)
		return
	}

	current := strings.TrimSpace(dto.Current)
	newKey := strings.TrimSpace(dto.New)
	if current == "" || newKey == "" {
		sendErr(w, http.StatusBadRequest, "VALIDATION_ERROR", "Debe indicar clave actual y nueva clave.", nil)
		return
	}
	if len(newKey) < 8 {
		sendErr(w, http.StatusBadRequest, "VALIDATION_ERROR", "La nueva clave debe tener al menos 8 caracteres.", nil)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if current != b.extrasKey {
		sendErr(w, http.StatusUnauthorized, "UNAUTHORIZED", "Clave actual incorrecta.", nil)
		return
	}
	b.extrasKey = newKey
	sendOK(w, http.StatusOK, map[string]any{"message": "OK"})
}

func (b *Backend) handleAdminStatus(w http.ResponseWriter, r *http.Request) {
	if !b.adminGuard(w, r) {
		return
	}
	sendOK(w, http.StatusOK, map[string]any{"extras_active": b.hasExtras(r)})
}

// ---- pedidos ----

func (b *Backend) handleListPedidos(w http.ResponseWriter, r *http.Request) {
	includeArchived := r.URL.Query().Get("incluir_archivados") == "1"
	if includeArchived && !b.extrasGuard(w, r) {
		return
	}
	estado := r.URL.Query().Get("estado")
	query := strings.ToLower(r.URL.Query().Get("q"))

	b.mu.Lock()
	defer b.mu.Unlock()
	list := make([]*pedido, 0, len(b.pedidos))
	for _, p := range b.pedidos {
		if !includeArchived && p.EsArchivado == 1 {
			continue
		}
		if estado != "" && p.Estado != estado {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(p.CodigoProducto+" "+p.DescripcionProducto), query) {
			continue
		}
		list = append(list, p)
	}
	sendOK(w, http.StatusOK, list)
}

func (b *Backend) handleCreatePedido(w http.ResponseWriter, r *http.Request) {
	var dto pedido
	if err := decode(r, &dto); err != nil {
		sendErr(w, http.StatusBadRequest, "VALIDATION_ERROR", "Cuerpo inválido.", nil)
		return
	}
	fields := map[string]string{}
	if strings.TrimSpace(dto.CodigoProducto) == "" {
		fields["codigo_producto"] = "Requerido."
	}
	if dto.PlanchasAsignadas <= 0 {
		fields["planchas_asignadas"] = "Debe ser mayor a cero."
	}
	if len(fields) > 0 {
		sendErr(w, http.StatusBadRequest, "VALIDATION_ERROR", "Hay campos inválidos.", fields)
		return
	}

	b.mu.Lock()
	b.nextPedidoID++
	dto.ID = b.nextPedidoID
	dto.Estado = "en_proceso"
	dto.EsArchivado = 0
	dto.FechaRegistro = b.now().Format("2006-01-02")
	b.pedidos[dto.ID] = &dto
	b.mu.Unlock()

	sendOK(w, http.StatusCreated, dto)
}

func (b *Backend) pedidoFromPath(w http.ResponseWriter, r *http.Request) *pedido {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		sendErr(w, http.StatusBadRequest, "VALIDATION_ERROR", "ID inválido.", nil)
		return nil
	}
	b.mu.Lock()
	p := b.pedidos[id]
	b.mu.Unlock()
	if p == nil {
		sendErr(w, http.StatusNotFound, "NOT_FOUND", "Pedido no encontrado.", nil)
		return nil
	}
	return p
}

func (b *Backend) handleGetPedido(w http.ResponseWriter, r *http.Request) {
	if p := b.pedidoFromPath(w, r); p != nil {
		sendOK(w, http.StatusOK, p)
	}
}

func (b *Backend) handleUpdatePedido(w http.ResponseWriter, r *http.Request) {
	p := b.pedidoFromPath(w, r)
	if p == nil {
		return
	}

	extras := b.hasExtras(r)
	b.mu.Lock()
	defer b.mu.Unlock()

	if p.EsArchivado == 1 {
		sendErr(w, http.StatusConflict, "ARCHIVED", "Pedido archivado: no se puede modificar.", nil)
		return
	}
	if (p.Estado == "completado" || p.Estado == "cancelado") && !extras {
		sendErr(w, http.StatusConflict, "LOCKED", "Pedido cerrado: requiere modo extras.", nil)
		return
	}

	var dto struct {
		UltimaPlancha *int    `json:"ultima_plancha_trabajada"`
		CortesTotales *int    `json:"cortes_totales"`
		Estado        *string `json:"estado"`
	}
	if err := decode(r, &dto); err != nil {
		sendErr(w, http.StatusBadRequest, "VALIDATION_ERROR", "Cuerpo inválido.", nil)
		return
	}
	if dto.UltimaPlancha != nil {
		if *dto.UltimaPlancha < 0 || *dto.UltimaPlancha > p.PlanchasAsignadas {
			sendErr(w, http.StatusBadRequest, "VALIDATION_ERROR", "Última plancha fuera de rango.", nil)
			return
		}
		p.UltimaPlancha = *dto.UltimaPlancha
	}
	if dto.CortesTotales != nil {
		if *dto.CortesTotales < 0 {
			sendErr(w, http.StatusBadRequest, "VALIDATION_ERROR", "Cortes totales no puede ser negativo.", nil)
			return
		}
		p.CortesTotales = *dto.CortesTotales
	}
	if dto.Estado != nil {
		switch *dto.Estado {
		case "en_proceso", "completado", "cancelado":
			p.Estado = *dto.Estado
		default:
			sendErr(w, http.StatusBadRequest, "VALIDATION_ERROR", "Estado inválido.", nil)
			return
		}
	}
	sendOK(w, http.StatusOK, p)
}

func (b *Backend) handleArchivePedido(w http.ResponseWriter, r *http.Request) {
	if !b.extrasGuard(w, r) {
		return
	}
	p := b.pedidoFromPath(w, r)
	if p == nil {
		return
	}
	flag := 0
	if mux.Vars(r)["action"] == "archivar" {
		flag = 1
	}
	b.mu.Lock()
	p.EsArchivado = flag
	b.mu.Unlock()
	sendOK(w, http.StatusOK, map[string]any{"id": p.ID, "es_archivado": flag})
}

func (b *Backend) handlePurgePedidos(w http.ResponseWriter, r *http.Request) {
	if !b.adminGuard(w, r) {
		return
	}
	if !b.extrasGuard(w, r) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	deleted := 0
	for id, p := range b.pedidos {
		if p.EsArchivado == 1 {
			delete(b.pedidos, id)
			deleted++
		}
	}
	sendOK(w, http.StatusOK, map[string]any{"deleted": deleted})
}

// ---- anomalias ----

func (b *Backend) handleListAnomalias(w http.ResponseWriter, r *http.Request) {
	includeArchived := r.URL.Query().Get("incluir_archivados") == "1"
	if includeArchived && !b.extrasGuard(w, r) {
		return
	}
	estado := r.URL.Query().Get("estado")

	b.mu.Lock()
	defer b.mu.Unlock()
	list := make([]*anomalia, 0, len(b.anomalias))
	for _, a := range b.anomalias {
		if !includeArchived && a.EsArchivado == 1 {
			continue
		}
		if estado != "" && a.Estado != estado {
			continue
		}
		list = append(list, a)
	}
	sendOK(w, http.StatusOK, list)
}

func (b *Backend) handleCreateAnomalia(w http.ResponseWriter, r *http.Request) {
	var dto anomalia
	if err := decode(r, &dto); err != nil {
		sendErr(w, http.StatusBadRequest, "VALIDATION_ERROR", "Cuerpo inválido.", nil)
		return
	}
	if strings.TrimSpace(dto.Descripcion) == "" {
		sendErr(w, http.StatusBadRequest, "VALIDATION_ERROR", "Hay campos inválidos.",
			map[string]string{"descripcion": "Requerido."})
		return
	}
	b.mu.Lock()
	b.nextAnomID++
	dto.ID = b.nextAnomID
	dto.Estado = "en_revision"
	dto.EsArchivado = 0
	dto.FechaRegistro = b.now().Format("2006-01-02")
	b.anomalias[dto.ID] = &dto
	b.mu.Unlock()
	sendOK(w, http.StatusCreated, dto)
}

func (b *Backend) anomaliaFromPath(w http.ResponseWriter, r *http.Request) *anomalia {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		sendErr(w, http.StatusBadRequest, "VALIDATION_ERROR", "ID inválido.", nil)
		return nil
	}
	b.mu.Lock()
	a := b.anomalias[id]
	b.mu.Unlock()
	if a == nil {
		sendErr(w, http.StatusNotFound, "NOT_FOUND", "Anomalía no encontrada.", nil)
		return nil
	}
	return a
}

func (b *Backend) handleGetAnomalia(w http.ResponseWriter, r *http.Request) {
	if a := b.anomaliaFromPath(w, r); a != nil {
		sendOK(w, http.StatusOK, a)
	}
}

func (b *Backend) handleUpdateAnomalia(w http.ResponseWriter, r *http.Request) {
	a := b.anomaliaFromPath(w, r)
	if a == nil {
		return
	}

	extras := b.hasExtras(r)
	b.mu.Lock()
	defer b.mu.Unlock()

	if a.EsArchivado == 1 {
		sendErr(w, http.StatusConflict, "ARCHIVED", "Anomalía archivada: no se puede modificar.", nil)
		return
	}
	if a.Estado == "solucionado" && !extras {
		sendErr(w, http.StatusConflict, "LOCKED", "Anomalía solucionada: requiere modo extras.", nil)
		return
	}

	var dto struct {
		Estado   string  `json:"estado"`
		Solucion *string `json:"solucion"`
	}
	if err := decode(r, &dto); err != nil {
		sendErr(w, http.StatusBadRequest, "VALIDATION_ERROR", "Cuerpo inválido.", nil)
		return
	}
	switch dto.Estado {
	case "en_revision", "solucionado":
		a.Estado = dto.Estado
	default:
		sendErr(w, http.StatusBadRequest, "VALIDATION_ERROR", "Estado inválido.", nil)
		return
	}
	if dto.Solucion != nil {
		a.Solucion = *dto.Solucion
	}
	sendOK(w, http.StatusOK, a)
}

func (b *Backend) handleArchiveAnomalia(w http.ResponseWriter, r *http.Request) {
	if !b.extrasGuard(w, r) {
		return
	}
	a := b.anomaliaFromPath(w, r)
	if a == nil {
		return
	}
	flag := 0
	if mux.Vars(r)["action"] == "archivar" {
		flag = 1
	}
	b.mu.Lock()
	a.EsArchivado = flag
	b.mu.Unlock()
	sendOK(w, http.StatusOK, map[string]any{"id": a.ID, "es_archivado": flag})
}

func (b *Backend) handlePurgeAnomalias(w http.ResponseWriter, r *http.Request) {
	if !b.adminGuard(w, r) {
		return
	}
	if !b.extrasGuard(w, r) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	deleted := 0
	for id, a := range b.anomalias {
		if a.EsArchivado == 1 {
			delete(b.anomalias, id)
			deleted++
		}
	}
	sendOK(w, http.StatusOK, map[string]any{"deleted": deleted})
}

func (b *Backend) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	if !b.adminGuard(w, r) {
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	cw := csv.NewWriter(w)
	defer cw.Flush()

	b.mu.Lock()
	defer b.mu.Unlock()
	if mux.Vars(r)["resource"] == "pedidos" {
		_ = cw.Write([]string{"id", "codigo_producto", "estado", "es_archivado"})
		for _, p := range b.pedidos {
			_ = cw.Write([]string{
				strconv.FormatInt(p.ID, 10), p.CodigoProducto, p.Estado, strconv.Itoa(p.EsArchivado),
			})
		}
		return
	}
	_ = cw.Write([]string{"id", "maquina", "estado", "es_archivado"})
	for _, a := range b.anomalias {
		_ = cw.Write([]string{
			strconv.FormatInt(a.ID, 10), a.Maquina, a.Estado, strconv.Itoa(a.EsArchivado),
		})
	}
}

// ---- catalogos ----

func (b *Backend) handleCatalogos(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	asignaciones := make(map[string][]int64, len(b.asignaciones))
	for tipoID, variaciones := range b.asignaciones {
		asignaciones[strconv.FormatInt(tipoID, 10)] = variaciones
	}
	sendOK(w, http.StatusOK, map[string]any{
		"tipos_plancha": b.tiposPlancha,
		"variaciones":   b.variaciones,
		"asignaciones":  asignaciones,
	})
}

func (b *Backend) handleVariaciones(w http.ResponseWriter, r *http.Request) {
	if !b.adminGuard(w, r) {
		return
	}
	var dto struct {
		TipoPlanchaID int64 `json:"tipo_plancha_id"`
		VariacionID   int64 `json:"variacion_id"`
	}
	if err := decode(r, &dto); err != nil || dto.TipoPlanchaID <= 0 || dto.VariacionID <= 0 {
		sendErr(w, http.StatusBadRequest, "VALIDATION_ERROR", "Cuerpo inválido.", nil)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	current := b.asignaciones[dto.TipoPlanchaID]
	if mux.Vars(r)["action"] == "asignar" {
		for _, id := range current {
			if id == dto.VariacionID {
				sendErr(w, http.StatusConflict, "CONFLICT", "La variación ya está asignada.", nil)
				return
			}
		}
		b.asignaciones[dto.TipoPlanchaID] = append(current, dto.VariacionID)
	} else {
		kept := current[:0]
		for _, id := range current {
			if id != dto.VariacionID {
				kept = append(kept, id)
			}
		}
		b.asignaciones[dto.TipoPlanchaID] = kept
	}
	sendOK(w, http.StatusOK, map[string]any{"message": "OK"})
}

func (b *Backend) handleAdminCatalogos(w http.ResponseWriter, r *http.Request) {
	if !b.adminGuard(w, r) {
		return
	}
	var dto struct {
		Catalogo string `json:"catalogo"`
		ID       int64  `json:"id"`
		Nombre   string `json:"nombre"`
	}
	if err := decode(r, &dto); err != nil {
		sendErr(w, http.StatusBadRequest, "VALIDATION_ERROR", "Cuerpo inválido.", nil)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	items := &b.tiposPlancha
	if dto.Catalogo == "variaciones" {
		items = &b.variaciones
	}

	switch mux.Vars(r)["action"] {
	case "create":
		id := int64(len(*items) + 1)
		*items = append(*items, catalogItem{ID: id, Nombre: dto.Nombre})
		sendOK(w, http.StatusCreated, map[string]any{"id": id})
	case "update":
		for i := range *items {
			if (*items)[i].ID == dto.ID {
				(*items)[i].Nombre = dto.Nombre
				sendOK(w, http.StatusOK, map[string]any{"message": "OK"})
				return
			}
		}
		sendErr(w, http.StatusNotFound, "NOT_FOUND", "Elemento no encontrado.", nil)
	case "delete":
		for i := range *items {
			if (*items)[i].ID == dto.ID {
				*items = append((*items)[:i], (*items)[i+1:]...)
				sendOK(w, http.StatusOK, map[string]any{"message": "OK"})
				return
			}
		}
		sendErr(w, http.StatusNotFound, "NOT_FOUND", "Elemento no encontrado.", nil)
	}
}

// ---- usuarios ----

func (b *Backend) handleListUsuarios(w http.ResponseWriter, r *http.Request) {
	if !b.adminGuard(w, r) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	list := make([]map[string]any, 0, len(b.users))
	for _, u := range b.users {
		list = append(list, map[string]any{
			"id":       u.ID,
			"nombre":   u.FirstName,
			"apellido": u.LastName,
			"email":    u.Email,
			"username": u.Username,
			"rol":      u.Role,
			"activo":   boolToInt(u.Active),
		})
	}
	sendOK(w, http.StatusOK, list)
}

func (b *Backend) handleAdminUsuarios(w http.ResponseWriter, r *http.Request) {
	if !b.adminGuard(w, r) {
		return
	}
	var dto struct {
		ID       string `json:"usuario_id"`
		Nombre   string `json:"nombre"`
		Apellido string `json:"apellido"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Rol      string `json:"rol"`
		Activo   *int   `json:"activo"`
	}
	if err := decode(r, &dto); err != nil {
		sendErr(w, http.StatusBadRequest, "VALIDATION_ERROR", "Cuerpo inválido.", nil)
		return
	}

	switch mux.Vars(r)["action"] {
	case "create":
		if dto.Email == "" || len(dto.Password) < 8 {
			sendErr(w, http.StatusBadRequest, "VALIDATION_ERROR", "Hay campos inválidos.", nil)
			return
		}
		b.AddUser(dto.Email, dto.Password, dto.Rol == "admin")
		sendOK(w, http.StatusCreated, map[string]any{"message": "OK"})
	case "update", "toggle":
		b.mu.Lock()
		defer b.mu.Unlock()
		for _, u := range b.users {
			if u.ID == dto.ID {
				if dto.Nombre != "" {
					u.FirstName = dto.Nombre
				}
				if dto.Apellido != "" {
					u.LastName = dto.Apellido
				}
				if dto.Rol != "" {
					u.Role = dto.Rol
				}
				if dto.Activo != nil {
					u.Active = *dto.Activo == 1
				}
				sendOK(w, http.StatusOK, map[string]any{"message": "OK"})
				return
			}
		}
		sendErr(w, http.StatusNotFound, "NOT_FOUND", "Usuario no encontrado.", nil)
	}
}

func (b *Backend) handlePasswordChange(w http.ResponseWriter, r *http.Request) {
	if !b.adminGuard(w, r) {
		return
	}
	var dto struct {
		ID string `json:"usuario_id"`
	}
	if err := decode(r, &dto); err != nil || dto.ID == "" {
		sendErr(w, http.StatusBadRequest, "VALIDATION_ERROR", "usuario_id inválido.", nil)
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if mux.Vars(r)["action"] == "approve" && !b.pendingPwd[dto.ID] {
		sendErr(w, http.StatusNotFound, "NOT_FOUND", "No hay solicitud pendiente.", nil)
		return
	}
	delete(b.pendingPwd, dto.ID)
	sendOK(w, http.StatusOK, map[string]any{"message": "OK"})
}

func (b *Backend) handlePendingPasswordChanges(w http.ResponseWriter, r *http.Request) {
	if !b.adminGuard(w, r) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	pending := make([]string, 0, len(b.pendingPwd))
	for id := range b.pendingPwd {
		pending = append(pending, id)
	}
	sendOK(w, http.StatusOK, pending)
}

// MintExtrasToken issues a token that the backend's guards will accept,
// bound to the given shift session.
func (b *Backend) MintExtrasToken(shiftID int64) string {
	b.mu.Lock()
	key := b.extrasKey
	b.mu.Unlock()
	token, err := extrastoken.Mint(key, shiftID, b.now(), extrastoken.DefaultTTL)
	if err != nil {
		panic(err)
	}
	return token
}

// SeedPasswordChange marks a pending password-change request for a user id.
func (b *Backend) SeedPasswordChange(userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pendingPwd[userID] = true
}

// UserID returns the id of a seeded user.
func (b *Backend) UserID(identifier string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if u := b.users[identifier]; u != nil {
		return u.ID
	}
	return ""
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
