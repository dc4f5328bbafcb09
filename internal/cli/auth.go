package cli

import (
	"context"
	"errors"
	"io"

	"github.com/dmitrijs2005/brainbox/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Signup prompts for an email and password and creates an account. It does
// not sign in.
func (a *App) Signup(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.reader, a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	user, err := a.client.Auth().SignUp(ctx, email, string(password))
	if err != nil {
		return err
	}

	printlnFn(a.out, "Account created for", user.Email+". Use 'login' to sign in.")
	return nil
}

// Login prompts for credentials and signs in.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}

	password, err := getPassword(a.reader, a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	sess, err := a.client.Auth().SignIn(ctx, email, string(password))
	if err != nil {
		return err
	}

	printlnFn(a.out, "Signed in as", sess.User.Email, "until", sess.ExpiresAt.Local().Format("2006-01-02 15:04"))
	return nil
}

// Logout ends the session. Logging out twice is harmless.
func (a *App) Logout(ctx context.Context) error {
	if err := a.client.Auth().SignOut(ctx); err != nil {
		return err
	}
	printlnFn(a.out, "Signed out")
	return nil
}

// WhoAmI verifies the session against the database and prints the user.
func (a *App) WhoAmI(ctx context.Context) error {
	user, err := a.client.Auth().GetUser(ctx)
	if err != nil {
		return err
	}
	printlnFn(a.out, user.Email, "("+user.ID+")")
	return nil
}
