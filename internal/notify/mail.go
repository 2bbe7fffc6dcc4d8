package notify

import "fmt"

// Mail copy for the two OTP purposes. Both name the code's 10-minute
// validity so users know when to request a resend.

func VerificationMail(code string) (subject, body string) {
	subject = "Verify your email - SnapTranslate"
	body = fmt.Sprintf(
		"Thank you for signing up for SnapTranslate.\n\n"+
			"Your verification code is: %s\n\n"+
			"The code expires in 10 minutes. If you did not request this, no action is needed.",
		code,
	)
	return subject, body
}

func ResetMail(code string) (subject, body string) {
	subject = "Reset your password - SnapTranslate"
	body = fmt.Sprintf(
		"A password reset was requested for your SnapTranslate account.\n\n"+
			"Your reset code is: %s\n\n"+
			"The code expires in 10 minutes. If you did not request this, no action is needed.",
		code,
	)
	return subject, body
}
