package service

import (
	"fmt"

	"github.com/mmeshcher/tirebot/internal/model"
)

const pickupInstructionsMessage = "📍 *Instructions de retrait*\n\n" +
	"🏢 Adresse: Entrepôt GarageConnect, Baie-Mahault\n\n" +
	"⏰ Horaires:\nLun-Ven: 8h00 - 17h00\nSam: 8h00 - 12h00\n\n" +
	"📝 Documents à apporter:\n• Votre QR Code (ci-dessus)\n• Pièce d'identité\n\n" +
	"💡 Vos pneus seront prêts sous 24h.\n\n" +
	"Tapez \"commandes\" pour voir vos commandes."

func paymentConfirmedMessage(o *model.Order) string {
	return fmt.Sprintf("✅ *Paiement confirmé !*\n\n📦 Commande: %s\n💰 Montant: %s TTC\n\n"+
		"🎫 Vous allez recevoir votre QR Code de retrait dans quelques instants...",
		o.OrderNumber, model.FormatEuro(model.WithVAT(o.TotalAmount)))
}

func readyMessage(o *model.Order) string {
	return fmt.Sprintf("📦 *Commande %s prête !*\n\nVos pneus vous attendent à l'entrepôt.\n"+
		"Présentez votre QR Code au retrait.\n\n💡 _Tapez \"commandes\" pour le retrouver_", o.OrderNumber)
}
