package aggregator

import "github.com/hitoshi/musa/internal/model"

// EmptyMessage は最初のページが空だったときにコレクションに表示する文言を返す。
func EmptyMessage(kind model.Kind) string {
	switch kind {
	case model.KindPosts:
		return "Nenhuma publicação ainda."
	case model.KindProducts:
		return "Nenhum produto cadastrado."
	case model.KindEvents:
		return "Nenhum evento cadastrado."
	default:
		return "Nenhum item."
	}
}

// ErrorMessage は最初のページの取得に失敗したときに表示する文言を返す。
func ErrorMessage(kind model.Kind) string {
	return "Erro ao carregar " + collectionLabel(kind) + "."
}

func collectionLabel(kind model.Kind) string {
	switch kind {
	case model.KindPosts:
		return "publicações"
	case model.KindProducts:
		return "produtos"
	case model.KindEvents:
		return "eventos"
	default:
		return "itens"
	}
}
