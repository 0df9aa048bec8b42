package service

import "fmt"

// VerificationEmail builds the email-verification message. The raw token is
// embedded in the link exactly once and never persisted anywhere in raw form.
func VerificationEmail(appURL, to, name, rawToken string) Email {
	link := fmt.Sprintf("%s/auth/verify-email?token=%s", appURL, rawToken)
	return Email{
		To:      to,
		Subject: "Verify your email address",
		HTML: fmt.Sprintf(`<p>Hi %s,</p>
<p>Welcome to microlearn! Please confirm your email address to activate your account.</p>
<p><a href="%s">Verify email</a></p>
<p>This link expires in 24 hours. If you did not create an account, you can ignore this message.</p>`, name, link),
		Text: fmt.Sprintf("Hi %s,\n\nConfirm your email address to activate your microlearn account:\n%s\n\nThis link expires in 24 hours. If you did not create an account, ignore this message.", name, link),
	}
}

func PasswordResetEmail(appURL, to, name, rawToken string) Email {
	link := fmt.Sprintf("%s/auth/reset-password?token=%s", appURL, rawToken)
	return Email{
		To:      to,
		Subject: "Reset your password",
		HTML: fmt.Sprintf(`<p>Hi %s,</p>
<p>We received a request to reset your password.</p>
<p><a href="%s">Reset password</a></p>
<p>This link expires in 1 hour. If you did not request a reset, your password is unchanged and you can ignore this message.</p>`, name, link),
		Text: fmt.Sprintf("Hi %s,\n\nReset your microlearn password:\n%s\n\nThis link expires in 1 hour. If you did not request a reset, ignore this message.", name, link),
	}
}

func WelcomeEmail(appURL, to, name string) Email {
	return Email{
		To:      to,
		Subject: "Welcome to microlearn",
		HTML: fmt.Sprintf(`<p>Hi %s,</p>
<p>Your email is verified and your account is ready.</p>
<p><a href="%s">Start learning</a></p>`, name, appURL),
		Text: fmt.Sprintf("Hi %s,\n\nYour email is verified and your account is ready.\n%s", name, appURL),
	}
}
