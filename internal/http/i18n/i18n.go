// Package i18n localizes user-facing API messages. Portuguese is the
// default; English is served when the Accept-Language header prefers it.
// Messages are keyed by the same stable codes the API returns.
package i18n

import (
	"net/http"

	"golang.org/x/text/language"
)

var (
	supported = []language.Tag{language.Portuguese, language.English}
	matcher   = language.NewMatcher(supported)
)

// Lang picks the response language for an Accept-Language value.
func Lang(acceptLanguage string) language.Tag {
	if acceptLanguage == "" {
		return language.Portuguese
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return language.Portuguese
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return language.Portuguese
	}
	return supported[idx]
}

// FromRequest is Lang applied to r's Accept-Language header.
func FromRequest(r *http.Request) language.Tag {
	if r == nil {
		return language.Portuguese
	}
	return Lang(r.Header.Get("Accept-Language"))
}

// Message returns the text for code in lang, falling back to Portuguese
// and then to the generic internal error text.
func Message(lang language.Tag, code string) string {
	m, ok := catalog[code]
	if !ok {
		m = catalog["internal_error"]
	}
	if lang == language.English {
		return m.en
	}
	return m.pt
}

// Has reports whether code has a catalog entry.
func Has(code string) bool {
	_, ok := catalog[code]
	return ok
}

type entry struct{ pt, en string }

var catalog = map[string]entry{
	"bad_request":         {"Pedido inválido.", "Invalid request."},
	"unauthorized":        {"Sessão inválida ou expirada. Entra novamente.", "Invalid or expired session. Please sign in again."},
	"forbidden":           {"Não tens permissão para esta ação.", "You are not allowed to do that."},
	"not_found":           {"Não encontrado.", "Not found."},
	"conflict":            {"Conflito com o estado atual.", "Conflict with the current state."},
	"too_many_requests":   {"Demasiados pedidos. Tenta novamente daqui a pouco.", "Too many requests. Try again shortly."},
	"internal_error":      {"Ocorreu um erro interno. Tenta novamente.", "Something went wrong. Please try again."},
	"method_not_allowed":  {"Método não permitido.", "Method not allowed."},
	"bad_idempotency_key": {"Idempotency-Key inválida.", "Invalid Idempotency-Key."},

	"invalid_message":        {"A mensagem deve ter entre 10 e 500 caracteres.", "Message must be 10 to 500 characters."},
	"invalid_username":       {"O nome de utilizador deve ter 3 a 20 letras, números ou _.", "Username must be 3 to 20 letters, digits or _."},
	"invalid_email":          {"Email inválido.", "Invalid email."},
	"weak_password":          {"A palavra-passe deve ter pelo menos 6 caracteres.", "Password must be at least 6 characters."},
	"invalid_display_name":   {"Nome de exibição demasiado longo.", "Display name is too long."},
	"invalid_payment_method": {"Método de pagamento não suportado.", "Unsupported payment method."},
	"user_not_found":         {"Utilizador não encontrado.", "User not found."},
	"message_not_found":      {"Mensagem não encontrada.", "Message not found."},
	"profile_not_found":      {"Perfil não encontrado.", "Profile not found."},
	"inbox_full":             {"A caixa de mensagens deste utilizador está cheia.", "This user's inbox is full."},
	"link_expired":           {"Este link é inválido ou expirou.", "This link is invalid or has expired."},
	"duplicate_username":     {"Este nome de utilizador já está em uso.", "This username is already taken."},
	"duplicate_email":        {"Este email já está registado.", "This email is already registered."},
	"auth_failed":            {"Email ou palavra-passe incorretos.", "Incorrect email or password."},
	"payment_not_completed":  {"O pagamento não foi concluído.", "The payment was not completed."},
	"google_disabled":        {"O login com Google não está disponível.", "Google sign-in is not available."},
	"invalid_signature":      {"Assinatura inválida.", "Invalid signature."},
	"profile_save_failed":    {"Conta criada, mas o perfil não foi guardado. Tenta entrar mais tarde.", "Account created, but the profile could not be saved. Try signing in later."},
}
