// Package locale holds the Arabic user-facing message catalog.
// Every state-changing operation surfaces exactly one of these.
package locale

type Key string

const (
	LoginSuccess        Key = "login_success"
	BadCredentials      Key = "bad_credentials"
	AccountNotConfirmed Key = "account_not_confirmed"
	NetworkError        Key = "network_error"
	GenericError        Key = "generic_error"
	LoggedOut           Key = "logged_out"
	SessionExpired      Key = "session_expired"
	RegisterSuccess     Key = "register_success"
	EmailConfirmed      Key = "email_confirmed"
	InvalidCode         Key = "invalid_code"
	UnknownEmail        Key = "unknown_email"
	CodeResent          Key = "code_resent"
	ResetCodeSent       Key = "reset_code_sent"
	PasswordReset       Key = "password_reset"
)

//nolint:gochecknoglobals // static catalog
var messages = map[Key]string{
	LoginSuccess:        "تم تسجيل الدخول بنجاح",
	BadCredentials:      "البريد الإلكتروني أو كلمة المرور غير صحيحة",
	AccountNotConfirmed: "يرجى تأكيد بريدك الإلكتروني أولاً",
	NetworkError:        "تعذر الاتصال بالخادم، يرجى المحاولة لاحقاً",
	GenericError:        "حدث خطأ غير متوقع، يرجى المحاولة مرة أخرى",
	LoggedOut:           "تم تسجيل الخروج بنجاح",
	SessionExpired:      "انتهت الجلسة بسبب عدم النشاط، يرجى تسجيل الدخول مرة أخرى",
	RegisterSuccess:     "تم إنشاء الحساب، يرجى تأكيد بريدك الإلكتروني",
	EmailConfirmed:      "تم تأكيد البريد الإلكتروني بنجاح",
	InvalidCode:         "رمز التحقق غير صحيح أو منتهي الصلاحية",
	UnknownEmail:        "البريد الإلكتروني غير مسجل",
	CodeResent:          "تم إرسال رمز التحقق إلى بريدك الإلكتروني",
	ResetCodeSent:       "تم إرسال رمز إعادة تعيين كلمة المرور",
	PasswordReset:       "تم تغيير كلمة المرور بنجاح",
}

// M resolves a message key. Unknown keys fall back to the key itself so a
// missing catalog entry never blanks a toast.
func M(k Key) string {
	if msg, ok := messages[k]; ok {
		return msg
	}
	return string(k)
}
