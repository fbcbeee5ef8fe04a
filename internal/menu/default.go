package menu

// Option ids of the default menu.
const (
	Balance  = "balance"
	Purchase = "purchase"
	Agent    = "agent"
	Exit     = "exit"
)

// Default is the Quantm Finance pt-BR menu.
func Default() *Menu {
	return &Menu{
		Options: []Option{
			{
				ID:       Balance,
				Prompt:   "Você escolheu consultar o saldo da sua conta.",
				Keywords: []string{"saldo", "conta", "1", "um", "primeiro", "primeira"},
				Audio:    "saldo_response.wav",
			},
			{
				ID:       Purchase,
				Prompt:   "Você escolheu fazer uma simulação de compra internacional.",
				Keywords: []string{"compra", "internacional", "2", "dois", "segundo", "segunda"},
				Audio:    "compra_response.wav",
			},
			{
				ID:       Agent,
				Prompt:   "Você escolheu falar com um atendente.",
				Keywords: []string{"atendente", "humano", "3", "três", "terceiro", "terceira"},
				Audio:    "atendente_response.wav",
			},
			{
				ID:       Exit,
				Prompt:   "Obrigado por utilizar nossos serviços. Até logo!",
				Keywords: []string{"sair", "encerrar", "4", "quatro", "quarto", "quarta"},
				Audio:    "sair_response.wav",
			},
		},
		ExitID: Exit,
		Messages: Messages{
			Welcome: "Bem-vindo ao atendimento automático da Quantm Finance.",
			Menu: "Por favor, escolha uma das seguintes opções. " +
				"Opção 1: Consulta ao saldo da conta. " +
				"Opção 2: Simulação de compra internacional. " +
				"Opção 3: Falar com um atendente. " +
				"Opção 4: Sair do atendimento.",
			Unrecognized: "Desculpe, não entendi sua opção.",
			Farewell:     "Obrigado por utilizar nossos serviços. Até logo!",
			GiveUp:       "Não foi possível identificar sua opção. Encerrando o atendimento. Até logo!",
		},
	}
}
