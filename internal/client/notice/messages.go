package notice

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

type Key string

const (
	SavedSynced       Key = "saved.synced"
	SavedLocal        Key = "saved.local"
	SavedNotSynced    Key = "saved.not_synced"
	DeletedEverywhere Key = "deleted.everywhere"
	DeletedLocal      Key = "deleted.local"
	DeletedNotRemote  Key = "deleted.not_remote"
	CameOnline        Key = "connectivity.online"
	WentOffline       Key = "connectivity.offline"
	SyncDone          Key = "sync.done"
	SyncPartial       Key = "sync.partial"
	RefreshFailed     Key = "sync.refresh_failed"
	NotSignedIn       Key = "sync.not_signed_in"
	StoreDegraded     Key = "store.degraded"
	StoreWriteFailed  Key = "store.write_failed"
	Registered        Key = "auth.registered"
	LoggedIn          Key = "auth.logged_in"
	LoggedOut         Key = "auth.logged_out"
	Exported          Key = "export.done"
	NothingToExport   Key = "export.empty"
)

var messages = map[Key][2]string{
	SavedSynced:       {"Service saved and synced", "Servicio actualizado y sincronizado exitosamente"},
	SavedLocal:        {"Service saved locally. It will sync when a connection is available", "Servicio actualizado localmente. Se sincronizará cuando haya conexión"},
	SavedNotSynced:    {"Service saved locally, but it could not be synced", "Servicio actualizado localmente, pero no se pudo sincronizar"},
	DeletedEverywhere: {"Record deleted", "Registro eliminado completamente"},
	DeletedLocal:      {"Record deleted locally. It will be removed from the cloud when back online", "Registro eliminado localmente. Se actualizará en la nube al reconectar"},
	DeletedNotRemote:  {"Record was deleted locally, but not in the cloud", "El registro se eliminó localmente, pero no en la nube"},
	CameOnline:        {"Internet connection detected. Syncing data...", "Conexión a Internet detectada. Sincronizando datos..."},
	WentOffline:       {"No Internet connection. Changes are kept locally", "No hay conexión a Internet. Los cambios se guardan localmente"},
	SyncDone:          {"Records synced (%d pushed)", "Registros sincronizados exitosamente (%d enviados)"},
	SyncPartial:       {"%d of %d records could not be synced and will be retried", "%d de %d registros no se pudieron sincronizar y se reintentarán"},
	RefreshFailed:     {"Could not refresh from the cloud. Showing saved records", "Error al actualizar desde la nube. Se muestran los registros guardados"},
	NotSignedIn:       {"Not signed in. Sync skipped", "Sesión no iniciada. Sincronización omitida"},
	StoreDegraded:     {"Local storage unavailable. Changes are kept in memory only", "Almacenamiento local no disponible. Los cambios solo se guardan en memoria"},
	StoreWriteFailed:  {"Could not write to local storage", "Error al guardar en el almacenamiento local"},
	Registered:        {"Registration successful. Please sign in", "Registro exitoso. Por favor inicia sesión."},
	LoggedIn:          {"Signed in", "Inicio de sesión exitoso"},
	LoggedOut:         {"Signed out", "Sesión cerrada exitosamente"},
	Exported:          {"Records exported to %s", "Registros exportados exitosamente a %s"},
	NothingToExport:   {"No records match the export filter", "No hay registros para exportar"},
}

var (
	supported = []language.Tag{language.English, language.Spanish}
	matcher   = language.NewMatcher(supported)
	cat       = buildCatalog()
)

func buildCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, m := range messages {
		_ = b.SetString(language.English, string(key), m[0])
		_ = b.SetString(language.Spanish, string(key), m[1])
	}
	return b
}

// Translator renders notices in one language.
type Translator struct {
	tag language.Tag
	p   *message.Printer
}

// NewTranslator picks the closest supported language for lang, falling
// back to English.
func NewTranslator(lang string) *Translator {
	tag := language.English
	if t, err := language.Parse(lang); err == nil {
		_, idx, _ := matcher.Match(t)
		tag = supported[idx]
	}
	return &Translator{tag: tag, p: message.NewPrinter(tag, message.Catalog(cat))}
}

func (t *Translator) Language() language.Tag {
	return t.tag
}

func (t *Translator) Text(n Notice) string {
	return t.p.Sprintf(string(n.Key), n.Args...)
}
