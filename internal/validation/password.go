package validation

import "fmt"

// ValidatePassword проверяет длину пароля: не короче 8 символов и не длиннее 72 байт (предел bcrypt).
func ValidatePassword(password string) error {
	if len([]rune(password)) < 8 {
		return fmt.Errorf("пароль должен быть не менее 8 символов")
	}
	if len(password) > 72 {
		return fmt.Errorf("пароль должен быть не длиннее 72 байт")
	}
	return nil
}
