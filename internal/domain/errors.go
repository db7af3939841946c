package domain

import "errors"

// Clasificación de errores recuperables. El engine los registra y sigue con el
// siguiente vault o ciclo; cualquier error sin clasificar termina el proceso.
var (
	// ErrPriceFeed: fuente de precios inaccesible o con datos inválidos. Termina el ciclo.
	ErrPriceFeed = errors.New("price feed error")

	// ErrFeeEstimation: la ejecución simulada no terminó en HALT. La acción se abandona.
	ErrFeeEstimation = errors.New("fee estimation error")

	// ErrSubmission: la red rechazó o no recibió la tx. Nunca se reintenta.
	ErrSubmission = errors.New("submission error")

	// ErrVaultData: página de vaults malformada. Se descarta la página.
	ErrVaultData = errors.New("vault data error")

	// ErrLedgerUnavailable: una lectura del ledger falló a mitad de ciclo. Termina el ciclo.
	ErrLedgerUnavailable = errors.New("ledger unavailable")
)

// IsRecoverable indica si el error está aislado al ciclo/vault actual.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrPriceFeed) ||
		errors.Is(err, ErrFeeEstimation) ||
		errors.Is(err, ErrSubmission) ||
		errors.Is(err, ErrVaultData) ||
		errors.Is(err, ErrLedgerUnavailable)
}
