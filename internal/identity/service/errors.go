package service

import (
	"net/http"

	"account-service/internal/apperr"
)

// Client-facing messages. None of them tells an unknown account apart from a wrong password.
const (
	msgMissingLoginInfo   = "Please provide email and password."
	msgIncorrectLogin     = "Incorrect email or password"
	msgPasswordMismatch   = "Passwords do not match."
	msgMissingToken       = "You are not logged in. Please login to have access."
	msgInvalidToken       = "Invalid token. Please login again."
	msgExpiredToken       = "Your token has expired. Please login again."
	msgUserGone           = "User no longer exists."
	msgPasswordChanged    = "User recently changed password. Please login again."
	msgUnknownEmail       = "There is no user with this email."
	msgResetTokenInvalid  = "Token is invalid or has expired."
	msgNotificationFailed = "There was an error sending the email. Please try again later."
)

func errMissingLoginInfo() error {
	return apperr.New(apperr.KindValidation, msgMissingLoginInfo)
}

func errIncorrectLogin() error {
	return apperr.New(apperr.KindInvalidCredentials, msgIncorrectLogin)
}

// errIncorrectCurrentPassword is returned by ChangePassword; the caller is already signed in so it is a 400.
func errIncorrectCurrentPassword() error {
	return apperr.New(apperr.KindInvalidCredentials, msgIncorrectLogin).WithStatus(http.StatusBadRequest)
}

func errPasswordMismatch() error {
	return apperr.New(apperr.KindPasswordMismatch, msgPasswordMismatch)
}

func errUnauthenticated(msg string, cause error) error {
	return apperr.Wrap(apperr.KindUnauthenticated, msg, cause)
}

func errResetTokenInvalid() error {
	return apperr.New(apperr.KindInvalidOrExpiredToken, msgResetTokenInvalid)
}
