package user

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"bitwise74/account-api/internal"
	"bitwise74/account-api/internal/store"
	"bitwise74/account-api/pkg/apperr"
	"bitwise74/account-api/pkg/middleware"
	"bitwise74/account-api/pkg/validators"
)

// Username: letters, digits and underscores, 4 to 15 long, not only digits
var (
	usernameRe   = regexp.MustCompile(`^[A-Za-z0-9_]{4,15}$`)
	onlyDigitsRe = regexp.MustCompile(`^[0-9]+$`)
)

// UpdatableFields are the only body fields PATCH /me lets through
var UpdatableFields = []string{"name", "date_of_birth", "bio", "location", "website", "username", "avatar", "cover_photo"}

func passwordField(name string) validators.Field {
	return validators.Field{
		Name:      name,
		In:        validators.Body,
		Sensitive: true,
		Rules: []validators.Rule{
			validators.NotEmpty(apperr.MsgPasswordRequired),
			validators.IsString(apperr.MsgPasswordMustBeStr),
			validators.Length(6, 50, apperr.MsgPasswordLength),
			validators.StrongPassword(apperr.MsgPasswordNotStrong),
		},
	}
}

func confirmPasswordField() validators.Field {
	f := passwordField("confirm_password")
	f.Rules = append(f.Rules, validators.Equals("password", apperr.MsgConfirmPasswordBad))

	return f
}

func nameField(optional bool) validators.Field {
	return validators.Field{
		Name:     "name",
		In:       validators.Body,
		Optional: optional,
		Rules: []validators.Rule{
			validators.IsString(apperr.MsgNameMustBeString),
			validators.Trim(),
			validators.NotEmpty(apperr.MsgNameRequired),
			validators.Length(1, 256, apperr.MsgNameLength),
		},
	}
}

func dateOfBirthField(optional bool) validators.Field {
	return validators.Field{
		Name:     "date_of_birth",
		In:       validators.Body,
		Optional: optional,
		Rules:    []validators.Rule{validators.ISO8601(apperr.MsgDateOfBirthInvalid)},
	}
}

func emailRules() []validators.Rule {
	return []validators.Rule{
		validators.IsString(apperr.MsgEmailInvalid),
		validators.Trim(),
		validators.NotEmpty(apperr.MsgEmailRequired),
		validators.IsEmail(apperr.MsgEmailInvalid),
	}
}

func textField(name string, max int) validators.Field {
	return validators.Field{
		Name:     name,
		In:       validators.Body,
		Optional: true,
		Rules: []validators.Rule{
			validators.IsString(apperr.MsgFieldMustBeString),
			validators.Trim(),
			validators.Length(1, max, apperr.MsgFieldLength),
		},
	}
}

// LoginSchema checks the credentials themselves, a mismatch aborts with 401.
// Without a usable password the password field reports the problem instead.
func LoginSchema(d *internal.Deps) validators.Schema {
	email := validators.Field{
		Name: "email",
		In:   validators.Body,
		Rules: append(emailRules(), validators.Custom(func(ctx context.Context, v any, r *validators.Request) error {
			password, _ := r.BodyValue("password")
			p, ok := password.(string)
			if !ok || strings.TrimSpace(p) == "" {
				return nil
			}

			a, err := d.Accounts.Authenticate(ctx, v.(string), p)
			if err != nil {
				if _, ok := apperr.As(err); ok {
					return err
				}

				return middleware.StoreFailure(err)
			}

			r.Set(middleware.KeyAccount, a)
			return nil
		})),
	}

	return validators.Schema{email, passwordField("password")}
}

func RegisterSchema(d *internal.Deps) validators.Schema {
	email := validators.Field{
		Name: "email",
		In:   validators.Body,
		Rules: append(emailRules(), validators.Custom(func(ctx context.Context, v any, _ *validators.Request) error {
			_, exists, err := d.Accounts.EmailExists(ctx, v.(string))
			if err != nil {
				return middleware.StoreFailure(err)
			}

			if exists {
				return errors.New(apperr.MsgEmailAlreadyExists)
			}

			return nil
		})),
	}

	return validators.Schema{
		nameField(false),
		email,
		passwordField("password"),
		confirmPasswordField(),
		dateOfBirthField(false),
	}
}

// ForgotPasswordSchema aborts with 404 when nobody uses the email
func ForgotPasswordSchema(d *internal.Deps) validators.Schema {
	return validators.Schema{{
		Name: "email",
		In:   validators.Body,
		Rules: append(emailRules(), validators.Custom(func(ctx context.Context, v any, r *validators.Request) error {
			a, exists, err := d.Accounts.EmailExists(ctx, v.(string))
			if err != nil {
				return middleware.StoreFailure(err)
			}

			if !exists {
				return apperr.NotFound(apperr.MsgUserNotFound)
			}

			r.Set(middleware.KeyAccount, a)
			return nil
		})),
	}}
}

// ResetPasswordSchema checks the forgot password token together with the
// new password
func ResetPasswordSchema(d *internal.Deps) validators.Schema {
	return append(d.Guards.ForgotPasswordTokenSchema(),
		passwordField("password"),
		confirmPasswordField(),
	)
}

func ChangePasswordSchema(d *internal.Deps) validators.Schema {
	old := passwordField("old_password")
	old.Rules = []validators.Rule{
		validators.NotEmpty(apperr.MsgPasswordRequired),
		validators.IsString(apperr.MsgPasswordMustBeStr),
		validators.Custom(func(ctx context.Context, v any, r *validators.Request) error {
			userID, _ := r.Get(middleware.KeyUserID)
			id, _ := userID.(string)

			ok, err := d.Accounts.CheckPassword(ctx, id, v.(string))
			if err != nil {
				if _, typed := apperr.As(err); typed {
					return err
				}

				return middleware.StoreFailure(err)
			}

			if !ok {
				return errors.New(apperr.MsgOldPasswordBad)
			}

			return nil
		}),
	}

	return validators.Schema{old, passwordField("password"), confirmPasswordField()}
}

func UpdateMeSchema(d *internal.Deps) validators.Schema {
	username := validators.Field{
		Name:     "username",
		In:       validators.Body,
		Optional: true,
		Rules: []validators.Rule{
			validators.IsString(apperr.MsgUsernameInvalid),
			validators.Trim(),
			validators.Matches(usernameRe, apperr.MsgUsernameInvalid),
			validators.Custom(func(ctx context.Context, v any, r *validators.Request) error {
				if onlyDigitsRe.MatchString(v.(string)) {
					return errors.New(apperr.MsgUsernameInvalid)
				}

				userID, _ := r.Get(middleware.KeyUserID)
				id, _ := userID.(string)

				taken, err := d.Accounts.UsernameTaken(ctx, v.(string), id)
				if err != nil {
					return middleware.StoreFailure(err)
				}

				if taken {
					return errors.New(apperr.MsgUsernameTaken)
				}

				return nil
			}),
		},
	}

	website := textField("website", 400)
	website.Rules = append(website.Rules, validators.IsURL(apperr.MsgWebsiteInvalid))

	return validators.Schema{
		nameField(true),
		dateOfBirthField(true),
		textField("bio", 200),
		textField("location", 200),
		website,
		username,
		textField("avatar", 400),
		textField("cover_photo", 400),
	}
}

// FollowSchema rejects following yourself with a field error and an unknown
// target with 404
func FollowSchema(d *internal.Deps) validators.Schema {
	return validators.Schema{{
		Name: "followed_user_id",
		In:   validators.Body,
		Rules: []validators.Rule{
			validators.IsString(apperr.MsgUserIDRequired),
			validators.Trim(),
			validators.NotEmpty(apperr.MsgUserIDRequired),
			validators.Custom(func(ctx context.Context, v any, r *validators.Request) error {
				userID, _ := r.Get(middleware.KeyUserID)
				if userID == v {
					return errors.New(apperr.MsgCannotFollowSelf)
				}

				if _, err := d.Store.AccountByID(ctx, v.(string)); err != nil {
					if errors.Is(err, store.ErrNotFound) {
						return apperr.NotFound(apperr.MsgUserNotFound)
					}

					return middleware.StoreFailure(err)
				}

				return nil
			}),
		},
	}}
}

func ProfileSchema() validators.Schema {
	return validators.Schema{{
		Name: "username",
		In:   validators.Params,
		Rules: []validators.Rule{
			validators.Custom(func(_ context.Context, v any, _ *validators.Request) error {
				if !usernameRe.MatchString(v.(string)) {
					return apperr.NotFound(apperr.MsgUserNotFound)
				}

				return nil
			}),
		},
	}}
}
