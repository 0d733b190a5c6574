package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/ukydev/lubricentro/internal/auth"
	"github.com/ukydev/lubricentro/internal/db"
	"github.com/ukydev/lubricentro/internal/models"
	"go.mongodb.org/mongo-driver/bson"
)

// UserService manages user accounts and sessions.
type UserService struct {
	base
	users   db.UserCollection
	tenants db.LubricentroCollection
	creds   Credentials
}

// NewUserService creates the user service.
func NewUserService(users db.UserCollection, tenants db.LubricentroCollection, creds Credentials, opts ...Option) *UserService {
	return &UserService{
		base:    newBase(opts),
		users:   users,
		tenants: tenants,
		creds:   creds,
	}
}

// Login checks credentials and issues a token pair.
func (s *UserService) Login(ctx context.Context, email, password string) (*models.LoginResponse, error) {
	email = auth.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, invalid("", "email y contraseña son obligatorios")
	}

	user, err := s.users.FindUserByEmail(ctx, email)
	if errors.Is(err, db.ErrNotFound) {
		s.audit.Info(ctx, models.EventLoginFailed, nil, "", "intento de ingreso con email desconocido", map[string]interface{}{"email": email})
		return nil, auth.ErrInvalidCredentials
	}
	if err != nil {
		return nil, s.fail(ctx, nil, "", "login find user", err)
	}

	actor := claimsOf(user)
	if !s.creds.CheckPassword(password, user.PasswordHash) {
		s.audit.Info(ctx, models.EventLoginFailed, actor, user.LubricentroID, "contraseña incorrecta", map[string]interface{}{"email": email})
		return nil, auth.ErrInvalidCredentials
	}
	if !user.IsActive() {
		s.audit.Info(ctx, models.EventLoginFailed, actor, user.LubricentroID, "usuario no activo", map[string]interface{}{"status": string(user.Status)})
		return nil, auth.ErrUserInactive
	}

	token, err := s.creds.GenerateToken(user)
	if err != nil {
		return nil, s.fail(ctx, actor, user.LubricentroID, "login generate token", err)
	}
	refresh, err := s.creds.GenerateRefreshToken()
	if err != nil {
		return nil, s.fail(ctx, actor, user.LubricentroID, "login generate refresh token", err)
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID.Hex()); err != nil {
		s.audit.SystemError(ctx, actor, user.LubricentroID, "update last login", err)
	}
	now := s.now()
	user.LastLogin = &now

	resp := &models.LoginResponse{Token: token, RefreshToken: refresh, User: *user}
	if user.LubricentroID != "" {
		tenant, err := s.tenants.FindLubricentroByID(ctx, user.LubricentroID)
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			return nil, s.fail(ctx, actor, user.LubricentroID, "login load lubricentro", err)
		}
		resp.Lubricentro = tenant
	}

	s.audit.Info(ctx, models.EventLogin, actor, user.LubricentroID, "ingreso de "+user.Email, nil)
	return resp, nil
}

func claimsOf(u *models.User) *models.Claims {
	return &models.Claims{UserID: u.ID.Hex(), Email: u.Email, Role: u.Role, LubricentroID: u.LubricentroID}
}

func (s *UserService) load(ctx context.Context, actor *models.Claims, id, operation string) (*models.User, error) {
	user, err := s.users.FindUserByID(ctx, id)
	if errors.Is(err, db.ErrNotFound) || errors.Is(err, db.ErrInvalidID) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, s.fail(ctx, actor, "", operation, err)
	}
	return user, nil
}

// loadScoped returns a user the actor is allowed to see. Users of other
// lubricentros read as not found.
func (s *UserService) loadScoped(ctx context.Context, actor *models.Claims, id, operation string) (*models.User, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	user, err := s.load(ctx, actor, id, operation)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleSuperAdmin && user.LubricentroID != actor.LubricentroID {
		return nil, ErrNotFound
	}
	return user, nil
}

// Me returns the acting user.
func (s *UserService) Me(ctx context.Context, actor *models.Claims) (*models.User, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	return s.load(ctx, actor, actor.UserID, "get current user")
}

// Get returns one user visible to actor.
func (s *UserService) Get(ctx context.Context, actor *models.Claims, id string) (*models.User, error) {
	return s.loadScoped(ctx, actor, id, "get user")
}

// List returns the users of a lubricentro.
func (s *UserService) List(ctx context.Context, actor *models.Claims, lubricentroID string) ([]models.User, error) {
	if err := authorizeTenant(actor, lubricentroID); err != nil {
		return nil, err
	}
	if err := requireRole(actor, models.RoleAdmin, models.RoleSuperAdmin); err != nil {
		return nil, err
	}
	users, err := s.users.FindUsersByLubricentro(ctx, lubricentroID)
	if err != nil {
		return nil, s.fail(ctx, actor, lubricentroID, "list users", err)
	}
	return users, nil
}

// Create adds an admin or employee to a lubricentro, subject to the
// create_user entitlement.
func (s *UserService) Create(ctx context.Context, actor *models.Claims, lubricentroID string, req models.CreateUserRequest) (*models.User, error) {
	if err := authorizeTenant(actor, lubricentroID); err != nil {
		return nil, err
	}

	req.Email = auth.NormalizeEmail(req.Email)
	req.FirstName = clean(req.FirstName)
	req.LastName = clean(req.LastName)
	if req.Role == "" {
		req.Role = models.RoleEmployee
	}
	if req.Role != models.RoleAdmin && req.Role != models.RoleEmployee {
		return nil, invalid("role", "rol inválido: %s", req.Role)
	}
	if req.FirstName == "" {
		return nil, invalid("first_name", "el nombre es obligatorio")
	}
	if err := s.creds.ValidateEmail(req.Email); err != nil {
		return nil, invalid("email", "%s", err.Error())
	}
	if err := s.creds.ValidatePassword(req.Password); err != nil {
		return nil, invalid("password", "%s", err.Error())
	}

	if err := s.check(ctx, actor, lubricentroID, models.ActionCreateUser); err != nil {
		return nil, err
	}

	if _, err := s.users.FindUserByEmail(ctx, req.Email); err == nil {
		return nil, fmt.Errorf("%w: email %s", ErrConflict, req.Email)
	} else if !errors.Is(err, db.ErrNotFound) {
		return nil, s.fail(ctx, actor, lubricentroID, "create user lookup email", err)
	}

	hash, err := s.creds.HashPassword(req.Password)
	if err != nil {
		return nil, s.fail(ctx, actor, lubricentroID, "create user hash password", err)
	}
	user := &models.User{
		Email:         req.Email,
		PasswordHash:  hash,
		Role:          req.Role,
		Status:        models.UserActive,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		LubricentroID: lubricentroID,
	}
	if err := s.users.InsertUser(ctx, user); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return nil, fmt.Errorf("%w: email %s", ErrConflict, req.Email)
		}
		return nil, s.fail(ctx, actor, lubricentroID, "create user", err)
	}
	if err := s.tenants.AdjustActiveUsers(ctx, lubricentroID, 1); err != nil {
		s.audit.SystemError(ctx, actor, lubricentroID, "adjust active users", err)
	}

	s.audit.Info(ctx, models.EventUserCreated, actor, lubricentroID, "usuario creado: "+user.Email, map[string]interface{}{
		"user_id": user.ID.Hex(),
		"role":    string(user.Role),
	})
	return user, nil
}

// CreateSuperAdmin creates a platform operator account outside any lubricentro.
func (s *UserService) CreateSuperAdmin(ctx context.Context, email, password, firstName, lastName string) (*models.User, error) {
	email = auth.NormalizeEmail(email)
	if err := s.creds.ValidateEmail(email); err != nil {
		return nil, invalid("email", "%s", err.Error())
	}
	if err := s.creds.ValidatePassword(password); err != nil {
		return nil, invalid("password", "%s", err.Error())
	}
	hash, err := s.creds.HashPassword(password)
	if err != nil {
		return nil, s.fail(ctx, nil, "", "create superadmin hash password", err)
	}
	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleSuperAdmin,
		Status:       models.UserActive,
		FirstName:    clean(firstName),
		LastName:     clean(lastName),
	}
	if err := s.users.InsertUser(ctx, user); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return nil, fmt.Errorf("%w: email %s", ErrConflict, email)
		}
		return nil, s.fail(ctx, nil, "", "create superadmin", err)
	}
	s.audit.Info(ctx, models.EventUserCreated, nil, "", "superadmin creado: "+email, map[string]interface{}{
		"user_id": user.ID.Hex(),
		"role":    string(user.Role),
	})
	return user, nil
}

// UpdateStatus activates or deactivates a user, keeping the lubricentro's
// active user counter in step. Reactivation is subject to the user cap.
func (s *UserService) UpdateStatus(ctx context.Context, actor *models.Claims, id string, status models.UserStatus) (*models.User, error) {
	if err := requireRole(actor, models.RoleAdmin, models.RoleSuperAdmin); err != nil {
		return nil, err
	}
	if !models.IsValidUserStatus(status) {
		return nil, invalid("status", "estado inválido: %s", status)
	}
	if id == actor.UserID {
		return nil, invalid("status", "no puede cambiar el estado de su propio usuario")
	}
	user, err := s.loadScoped(ctx, actor, id, "update user status")
	if err != nil {
		return nil, err
	}
	if user.Status == status {
		return user, nil
	}

	wasActive := user.IsActive()
	nowActive := status == models.UserActive
	if nowActive && user.LubricentroID != "" {
		if err := s.check(ctx, actor, user.LubricentroID, models.ActionCreateUser); err != nil {
			return nil, err
		}
	}

	if err := s.users.UpdateUserFields(ctx, id, bson.M{"status": status}); err != nil {
		return nil, s.fail(ctx, actor, user.LubricentroID, "update user status", err)
	}
	if user.LubricentroID != "" && wasActive != nowActive {
		delta := 1
		if wasActive {
			delta = -1
		}
		if err := s.tenants.AdjustActiveUsers(ctx, user.LubricentroID, delta); err != nil {
			s.audit.SystemError(ctx, actor, user.LubricentroID, "adjust active users", err)
		}
	}

	s.audit.Info(ctx, models.EventUserUpdated, actor, user.LubricentroID, "estado de usuario actualizado", map[string]interface{}{
		"user_id":         id,
		"previous_status": string(user.Status),
		"status":          string(status),
	})
	user.Status = status
	return user, nil
}

// UpdateRole switches a user between admin and employee.
func (s *UserService) UpdateRole(ctx context.Context, actor *models.Claims, id string, role models.Role) (*models.User, error) {
	if err := requireRole(actor, models.RoleAdmin, models.RoleSuperAdmin); err != nil {
		return nil, err
	}
	if role != models.RoleAdmin && role != models.RoleEmployee {
		return nil, invalid("role", "rol inválido: %s", role)
	}
	if id == actor.UserID {
		return nil, invalid("role", "no puede cambiar su propio rol")
	}
	user, err := s.loadScoped(ctx, actor, id, "update user role")
	if err != nil {
		return nil, err
	}
	if user.Role == models.RoleSuperAdmin {
		return nil, ErrForbidden
	}
	if user.Role == role {
		return user, nil
	}
	if err := s.users.UpdateUserFields(ctx, id, bson.M{"role": role}); err != nil {
		return nil, s.fail(ctx, actor, user.LubricentroID, "update user role", err)
	}
	s.audit.Info(ctx, models.EventUserUpdated, actor, user.LubricentroID, "rol de usuario actualizado", map[string]interface{}{
		"user_id":       id,
		"previous_role": string(user.Role),
		"role":          string(role),
	})
	user.Role = role
	return user, nil
}

// Delete removes a user. The tenant owner cannot be deleted.
func (s *UserService) Delete(ctx context.Context, actor *models.Claims, id string) error {
	if err := requireRole(actor, models.RoleAdmin, models.RoleSuperAdmin); err != nil {
		return err
	}
	if id == actor.UserID {
		return invalid("id", "no puede eliminar su propio usuario")
	}
	user, err := s.loadScoped(ctx, actor, id, "delete user")
	if err != nil {
		return err
	}
	if user.LubricentroID != "" {
		tenant, err := s.tenants.FindLubricentroByID(ctx, user.LubricentroID)
		if err == nil && tenant.OwnerID == id {
			return invalid("id", "no puede eliminar al propietario del lubricentro")
		}
	}

	err = s.users.DeleteUser(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return s.fail(ctx, actor, user.LubricentroID, "delete user", err)
	}
	if user.IsActive() && user.LubricentroID != "" {
		if err := s.tenants.AdjustActiveUsers(ctx, user.LubricentroID, -1); err != nil {
			s.audit.SystemError(ctx, actor, user.LubricentroID, "adjust active users", err)
		}
	}
	s.audit.Info(ctx, models.EventUserDeleted, actor, user.LubricentroID, "usuario eliminado: "+user.Email, map[string]interface{}{
		"user_id": id,
	})
	return nil
}

// ChangePassword replaces the actor's password after checking the current one.
func (s *UserService) ChangePassword(ctx context.Context, actor *models.Claims, current, next string) error {
	user, err := s.Me(ctx, actor)
	if err != nil {
		return err
	}
	if !s.creds.CheckPassword(current, user.PasswordHash) {
		return invalid("current_password", "la contraseña actual es incorrecta")
	}
	if err := s.creds.ValidatePassword(next); err != nil {
		return invalid("new_password", "%s", err.Error())
	}
	hash, err := s.creds.HashPassword(next)
	if err != nil {
		return s.fail(ctx, actor, user.LubricentroID, "change password hash", err)
	}
	if err := s.users.UpdateUserFields(ctx, user.ID.Hex(), bson.M{"password_hash": hash}); err != nil {
		return s.fail(ctx, actor, user.LubricentroID, "change password", err)
	}
	s.audit.Info(ctx, models.EventUserUpdated, actor, user.LubricentroID, "contraseña actualizada", map[string]interface{}{"user_id": user.ID.Hex()})
	return nil
}
