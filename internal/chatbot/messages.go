package chatbot

import (
	"fmt"
	"strings"
	"time"

	"github.com/ashureev/providata-intake/internal/domain"
)

const notInformed = "Não informado"

const (
	msgWelcome = `🏛️ *ProviDATA - Sistema de Providências*

Olá! Sou o assistente virtual do ProviDATA, o sistema que conecta cidadãos aos seus representantes políticos.

Através de mim, você pode registrar pedidos de providência diretamente ao gabinete do seu representante.

📍 Para começar, me informe o *município* onde você reside:`

	msgMunicipalityNotFound = `❌ Não encontramos gabinetes cadastrados para esse município.

Os municípios com gabinetes disponíveis são:
%s

Por favor, digite o nome de um dos municípios acima:`

	msgSelectOffice = `📋 Encontramos os seguintes gabinetes em *%s*:

%s

Digite o *número* do gabinete para o qual deseja enviar sua providência:`

	msgAskName = `👤 Ótimo! Você selecionou o gabinete:
*%s*

Agora, por favor, informe seu *nome completo*:`

	msgAskTaxID = `📝 Obrigado, *%s*!

Informe seu *CPF* (apenas números) ou digite *pular* para continuar sem CPF:`

	msgSelectCategory = `📂 Agora selecione a *categoria* da sua providência:

%s

Digite o *número* da categoria:`

	msgAskDescription = `✏️ Categoria selecionada: *%s*

Agora descreva detalhadamente o seu pedido de providência.
Quanto mais informações, melhor poderemos atendê-lo:`

	msgAskDescriptionGeneral = "✏️ Descreva detalhadamente o seu pedido de providência.\nQuanto mais informações, melhor poderemos atendê-lo:"

	msgSummary = `📋 *Resumo da sua providência:*

👤 Nome: *%s*
📍 Município: *%s*
🏛️ Gabinete: *%s*
📂 Categoria: *%s*
📝 Descrição: %s

Confirma o envio? Digite *SIM* para confirmar ou *NÃO* para cancelar:`

	msgCreated = `✅ *Providência registrada com sucesso!*

📋 Protocolo: *%s*
📅 Data: %s

Seu pedido foi encaminhado ao gabinete e será analisado em breve.

Guarde o número do protocolo para acompanhamento.

Para registrar uma nova providência, envie *menu*.`

	msgCancelled = `❌ Providência cancelada.

Para iniciar um novo pedido, envie *menu*.`

	msgError = `⚠️ Ocorreu um erro ao processar sua mensagem. Por favor, tente novamente.

Se o problema persistir, envie *reiniciar* para começar do zero.`

	msgInvalidOption = "⚠️ Opção inválida. Por favor, escolha uma das opções disponíveis.\n\nDigite um número de 1 a %d:"

	msgSessionExpired = `⏰ Sua sessão expirou por inatividade.

Para iniciar um novo pedido, envie qualquer mensagem.`

	msgNameTooShort        = "⚠️ Por favor, informe seu nome completo (mínimo 3 caracteres):"
	msgTaxIDInvalid        = "⚠️ CPF inválido. Digite os 11 números do CPF ou *pular* para continuar sem CPF:"
	msgDescriptionTooShort = "⚠️ A descrição precisa ter pelo menos 10 caracteres. Por favor, descreva melhor o seu pedido:"
	msgConfirmPrompt       = "Por favor, digite *SIM* para confirmar ou *NÃO* para cancelar:"
)

const (
	summaryDescriptionLength = 100
	titleDescriptionLength   = 50
)

func municipalityNotFound(municipalities []string) string {
	list := "Nenhum município cadastrado"
	if len(municipalities) > 0 {
		lines := make([]string, len(municipalities))
		for i, m := range municipalities {
			lines[i] = "  • " + m
		}
		list = strings.Join(lines, "\n")
	}
	return fmt.Sprintf(msgMunicipalityNotFound, list)
}

func invalidOption(n int) string {
	return fmt.Sprintf(msgInvalidOption, n)
}

func summary(s *domain.Session) string {
	description := s.Collected.Description
	if short := truncateRunes(description, summaryDescriptionLength); short != description {
		description = short + "..."
	}
	category := s.Collected.CategoryName
	if category == "" {
		category = domain.DefaultCategoryName
	}
	return fmt.Sprintf(msgSummary,
		orNotInformed(s.Collected.FullName),
		orNotInformed(s.Municipality),
		orNotInformed(s.SelectedOfficeName),
		category,
		description,
	)
}

func created(trackingCode string, at time.Time) string {
	return fmt.Sprintf(msgCreated, trackingCode, at.Format("02/01/2006 às 15:04"))
}

// requestTitle builds the title shown to the office staff.
func requestTitle(s *domain.Session) string {
	category := s.Collected.CategoryName
	if category == "" {
		category = domain.DefaultCategoryName
	}
	return fmt.Sprintf("[WhatsApp] %s - %s", category, truncateRunes(s.Collected.Description, titleDescriptionLength))
}

func orNotInformed(v string) string {
	if v == "" {
		return notInformed
	}
	return v
}
