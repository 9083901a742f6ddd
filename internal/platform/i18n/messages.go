package i18n

// arabic is keyed by the English message text.
var arabic = map[string]string{
	// authn
	"Authentication required":  "المصادقة مطلوبة",
	"Invalid or expired token": "رمز غير صالح أو منتهي الصلاحية",
	"Session expired":          "انتهت صلاحية الجلسة",
	"Account disabled":         "الحساب معطل",
	"Insufficient privilege":   "صلاحيات غير كافية",
	"Internal server error":    "خطأ داخلي في الخادم",

	// rate limit policies
	"Too many login attempts, please try again later":                   "تم تجاوز الحد الأقصى لمحاولات تسجيل الدخول",
	"Too many registration attempts, please try again later":            "تم تجاوز الحد الأقصى لمحاولات التسجيل",
	"Too many password reset requests, please try again later":          "تم تجاوز الحد الأقصى لطلبات إعادة تعيين كلمة المرور",
	"Too many email verification attempts, please try again later":      "تم تجاوز الحد الأقصى لمحاولات التحقق من البريد الإلكتروني",
	"Too many profile updates, please try again later":                  "تم تجاوز الحد الأقصى لمحاولات تحديث الملف الشخصي",
	"Too many password change attempts, please try again later":         "تم تجاوز الحد الأقصى لمحاولات تغيير كلمة المرور",
	"Too many requests, please try again later":                         "تم تجاوز الحد الأقصى للطلبات",
	"Too many requests to a sensitive endpoint, please try again later": "تم تجاوز الحد الأقصى للطلبات الحساسة",
	"Too many administrative requests, please try again later":          "تم تجاوز الحد الأقصى للطلبات الإدارية",
}
