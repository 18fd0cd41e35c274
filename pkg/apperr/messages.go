package apperr

// Client facing messages. Kept in one place so guards, validators and
// handlers agree on wording.
const (
	MsgValidationError = "Validation error"
	MsgInternal        = "Internal server error"
	MsgUnavailable     = "Service temporarily unavailable"
	MsgInvalidBody     = "Invalid request body"
	MsgBodyTooLarge    = "Request body size exceeds limit"

	MsgNameRequired        = "Name is required"
	MsgNameMustBeString    = "Name must be a string"
	MsgNameLength          = "Name must be from 1 to 256 characters"
	MsgEmailRequired       = "Email is required"
	MsgEmailInvalid        = "Email is invalid"
	MsgEmailAlreadyExists  = "Email already exists"
	MsgEmailOrPasswordBad  = "Email or password is incorrect"
	MsgPasswordRequired    = "Password is required"
	MsgPasswordMustBeStr   = "Password must be a string"
	MsgPasswordLength      = "Password must be from 6 to 50 characters"
	MsgPasswordNotStrong   = "Password must contain at least 1 lowercase, 1 uppercase, 1 number and 1 symbol"
	MsgConfirmPasswordBad  = "Password confirmation does not match password"
	MsgOldPasswordBad      = "Old password does not match"
	MsgDateOfBirthInvalid  = "Date of birth must be an ISO8601 date"
	MsgFieldMustBeString   = "Field must be a string"
	MsgFieldLength         = "Field must be from 1 to 200 characters"
	MsgWebsiteInvalid      = "Website must be a valid URL"
	MsgUsernameInvalid     = "Username must be 4-15 letters, numbers or underscores and not only numbers"
	MsgUsernameTaken       = "Username already exists"
	MsgUserNotFound        = "User not found"
	MsgUserIDRequired      = "User id is required"
	MsgCannotFollowSelf    = "You cannot follow yourself"
	MsgUserNotVerified     = "User is not verified"
	MsgAccessTokenRequired = "Access token is required"
	MsgAccessTokenMismatch = "Access token and refresh token belong to different users"

	MsgRefreshTokenRequired     = "Refresh token is required"
	MsgRefreshTokenNotExist     = "Refresh token does not exist or was used"
	MsgEmailVerifyTokenRequired = "Email verify token is required"
	MsgEmailVerifyTokenUsed     = "Email verify token is invalid or was already used"
	MsgForgotTokenRequired      = "Forgot password token is required"
	MsgForgotTokenInvalid       = "Forgot password token is invalid or was already used"

	MsgTokenExpired   = "Token has expired"
	MsgTokenMalformed = "Token is malformed"
	MsgTokenSignature = "Token signature is invalid"
	MsgTokenKind      = "Token is not valid for this operation"

	MsgLoginSuccess          = "Login success"
	MsgRegisterSuccess       = "Register success"
	MsgLogoutSuccess         = "Logout success"
	MsgRefreshTokenSuccess   = "Refresh token success"
	MsgEmailVerifySuccess    = "Email verify success"
	MsgEmailAlreadyVerified  = "Email already verified before"
	MsgResendVerifySuccess   = "Resend verify email success"
	MsgCheckEmailToReset     = "Check email to reset password"
	MsgForgotTokenVerified   = "Verify forgot password success"
	MsgResetPasswordSuccess  = "Reset password success"
	MsgChangePasswordSuccess = "Change password success"
	MsgGetMeSuccess          = "Get my profile success"
	MsgUpdateMeSuccess       = "Update my profile success"
	MsgGetProfileSuccess     = "Get profile success"
	MsgFollowSuccess         = "Follow success"
	MsgAlreadyFollowed       = "Followed"
	MsgUnfollowSuccess       = "Unfollow success"
	MsgAlreadyUnfollowed     = "Already unfollowed"
	MsgAccessTokenValid      = "Access token is valid"
)
