package bot

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/tirebot/internal/cart"
	"github.com/mmeshcher/tirebot/internal/catalog"
	"github.com/mmeshcher/tirebot/internal/model"
	"github.com/mmeshcher/tirebot/internal/session"
	"github.com/mmeshcher/tirebot/internal/validation"
)

const (
	msgWelcome = "🚗 *Bienvenue chez GarageConnect !*\n\n" +
		"Votre assistant pneus en Guadeloupe 🇬🇵\n\n" +
		"*MENU PRINCIPAL*\n" +
		"1️⃣ Rechercher pneus\n" +
		"2️⃣ Mon panier\n" +
		"3️⃣ Mes commandes\n\n" +
		"💡 _Tapez le numéro de votre choix_"

	msgMenu = "📋 *MENU PRINCIPAL*\n\n" +
		"1️⃣ Rechercher pneus\n" +
		"2️⃣ Mon panier\n" +
		"3️⃣ Mes commandes\n\n" +
		"💡 _Tapez le numéro de votre choix_\n" +
		"_Commandes: \"recherche\", \"panier\", \"commandes\", \"menu\"_"

	msgRetry          = "⚠️ Service momentanément indisponible.\n\n💡 _Merci de réessayer dans quelques instants_"
	msgNoStock        = "😕 *AUCUN PNEU DISPONIBLE*\n\nNotre stock est vide pour le moment.\n\n💡 _Tapez \"menu\" pour revenir au menu_"
	msgEmptyCart      = "🛒 *PANIER VIDE*\n\n💡 _Tapez \"recherche\" pour trouver des pneus_"
	msgEmptyCartGuard = "🛒 *PANIER VIDE*\n\n💡 Ajoutez d'abord des pneus au panier"
	msgCartCleared    = "✅ Panier vidé\n\n💡 _Tapez \"recherche\" pour une nouvelle recherche_"
	msgCartHint       = "💡 _Tapez \"commander\" ou \"vider\"_"
	msgCheckoutPrompt = "📋 *FINALISATION*\n\nVoulez-vous ajouter votre email ?\n\n💡 _Tapez votre email ou \"non\"_"
	msgPaymentFailed  = "⚠️ *PAIEMENT INDISPONIBLE*\n\nNous n'avons pas pu préparer votre paiement.\n" +
		"Votre panier est conservé.\n\n💡 _Tapez \"non\" ou votre email pour réessayer, ou \"menu\"_"
	msgNoOrders     = "📦 *AUCUNE COMMANDE*\n\n💡 _Tapez \"recherche\" pour commencer_"
	msgOrdersHint   = "💡 _Tapez le numéro de la commande ou \"menu\"_"
	msgPickOrder    = "💡 _Choisissez d'abord une commande en tapant son numéro_"
	msgQRNotReady   = "⏳ Le QR Code de retrait sera disponible après le paiement de la commande."
	msgOrderMissing = "❓ Cette commande est introuvable.\n\n💡 _Tapez \"commandes\" pour actualiser la liste_"
)

var statusLabels = map[model.OrderStatus]string{
	model.OrderStatusPending:   "⏳ En attente",
	model.OrderStatusPaid:      "✅ Payée",
	model.OrderStatusReady:     "📦 Prête",
	model.OrderStatusCompleted: "🎉 Terminée",
	model.OrderStatusCancelled: "❌ Annulée",
}

func statusLabel(s model.OrderStatus) string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return "❓ " + string(s)
}

func invalidChoice(n int) string {
	return fmt.Sprintf("❌ Choix invalide\n\n💡 _Tapez un numéro entre 1 et %d_", n)
}

func badQuantity() string {
	return fmt.Sprintf("❌ Quantité invalide (%d-%d)\n\n💡 _Ex: \"1 4\" pour 4 pneus_", validation.MinQuantity, validation.MaxQuantity)
}

func invalidProduct(n int) string {
	return fmt.Sprintf("❌ Numéro invalide\n\n💡 _Tapez un numéro entre 1 et %d, suivi de la quantité. Ex: \"1 4\"_", n)
}

func invalidOrder(n int) string {
	return fmt.Sprintf("❌ Numéro invalide\n\n💡 _Tapez un numéro entre 1 et %d_", n)
}

func widthsMessage(opts []catalog.Option) string {
	var b strings.Builder
	b.WriteString("🔍 *RECHERCHE DE PNEUS*\n\n📏 *Sélectionnez la LARGEUR*\n\n")
	for i, o := range opts {
		fmt.Fprintf(&b, "%d. %dmm (%s)\n", i+1, o.Value, models(o.Models))
	}
	b.WriteString("\n💡 Tapez le numéro")
	return b.String()
}

func heightsMessage(width int, opts []catalog.Option) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ *Largeur: %dmm*\n\n📐 *Sélectionnez la HAUTEUR*\n\n", width)
	for i, o := range opts {
		fmt.Fprintf(&b, "%d. %d (%s)\n", i+1, o.Value, models(o.Models))
	}
	b.WriteString("\n💡 Tapez le numéro")
	return b.String()
}

func diametersMessage(width, height int, opts []catalog.Option) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔍 *RECHERCHE EN COURS*\n\n✅ Largeur: %dmm\n✅ Hauteur: %d\n\n⭕ *Sélectionnez le DIAMÈTRE*\n\n", width, height)
	for i, o := range opts {
		fmt.Fprintf(&b, "%d. R%d (%s)\n", i+1, o.Value, models(o.Models))
	}
	b.WriteString("\n💡 Tapez le numéro")
	return b.String()
}

func models(n int) string {
	if n == 1 {
		return "1 modèle"
	}
	return fmt.Sprintf("%d modèles", n)
}

func noResultsMessage(dimension string) string {
	return fmt.Sprintf("😕 *AUCUN PNEU TROUVÉ* en %s\n\n💡 _Tapez \"recherche\" pour une nouvelle recherche_", dimension)
}

func resultsMessage(c session.Criteria, products []session.ProductView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎯 *%d PNEU(X) TROUVÉ(S)*\n\n", len(products))
	fmt.Fprintf(&b, "🔍 *RECHERCHE TERMINÉE*\n✅ Largeur: %dmm\n✅ Hauteur: %d\n✅ Diamètre: R%d\n\n",
		deref(c.Width), deref(c.Height), deref(c.Diameter))

	for i, p := range products {
		promo := ""
		if p.IsOverstock && p.DiscountPercent != nil {
			promo = fmt.Sprintf("🔥 -%d%% ", *p.DiscountPercent)
		}
		fmt.Fprintf(&b, "*%d. %s %s*\n   %s%s • %s\n\n", i+1, p.Brand, p.Model, promo, model.FormatEuro(p.Price), availability(p))
	}

	b.WriteString("🛒 *AJOUTER AU PANIER*\n")
	b.WriteString("💡 Tapez: numéro + quantité\n")
	b.WriteString("   Ex: \"1 4\" pour 4 pneus n°1\n\n")
	b.WriteString("📝 Ou \"panier\" pour voir votre panier")
	return b.String()
}

func availability(p session.ProductView) string {
	if p.StockQuantity > 0 {
		return fmt.Sprintf("%d dispo", p.StockQuantity)
	}
	return "sur commande"
}

func addedMessage(p session.ProductView, quantity int, total decimal.Decimal) string {
	var b strings.Builder
	b.WriteString("✅ *AJOUTÉ AU PANIER !*\n\n")
	fmt.Fprintf(&b, "🚗 %s %s\n", p.Brand, p.Model)
	fmt.Fprintf(&b, "📦 Quantité: %d\n", quantity)
	fmt.Fprintf(&b, "💰 Prix: %s\n\n", model.FormatEuro(p.Price.Mul(decimal.NewFromInt(int64(quantity)))))
	fmt.Fprintf(&b, "🛒 *Total panier: %s*\n\n", model.FormatEuro(total))
	b.WriteString("*QUE VOULEZ-VOUS FAIRE ?*\n\n")
	b.WriteString("📝 Tapez \"panier\" pour voir le panier\n")
	b.WriteString("🛍️ Tapez \"commander\" pour finaliser\n")
	b.WriteString("🔢 Ou tapez un autre numéro pour ajouter plus")
	return b.String()
}

func cartMessage(lines []cart.Line) string {
	var b strings.Builder
	b.WriteString("🛒 *VOTRE PANIER*\n\n")
	for _, l := range lines {
		fmt.Fprintf(&b, "• %s %s\n  %d × %s = %s\n\n", l.Product.Brand, l.Product.Model,
			l.Item.Quantity, model.FormatEuro(l.Product.PriceRetail), model.FormatEuro(l.Subtotal))
	}
	total := cart.Sum(lines)
	b.WriteString("*RÉCAPITULATIF*\n")
	fmt.Fprintf(&b, "Sous-total: %s\n", model.FormatEuro(total))
	fmt.Fprintf(&b, "TVA (20%%): %s\n", model.FormatEuro(model.VAT(total)))
	fmt.Fprintf(&b, "*Total TTC: %s*\n\n", model.FormatEuro(model.WithVAT(total)))
	b.WriteString("💡 _Tapez \"commander\" pour finaliser_\n")
	b.WriteString("   _Ou \"vider\" pour vider le panier_")
	return b.String()
}

func orderCreatedMessage(o *model.Order, link string) string {
	return fmt.Sprintf("✅ *COMMANDE CRÉÉE !*\n\n"+
		"📦 *%s*\n"+
		"💰 *%s TTC*\n\n"+
		"🔗 *PAIEMENT SÉCURISÉ*\n%s\n\n"+
		"📱 Cliquez pour payer avec Stripe\n\n"+
		"🎫 Après paiement:\n• QR Code de retrait\n• Retrait sous 24h\n\n"+
		"💡 _Tapez \"menu\" pour revenir au menu_",
		o.OrderNumber, model.FormatEuro(model.WithVAT(o.TotalAmount)), link)
}

func missingProductMessage(productID string, cartEmpty bool) string {
	msg := fmt.Sprintf("⚠️ Un pneu de votre panier (réf. %s) n'est plus disponible. Il a été retiré.\n\n", productID)
	if cartEmpty {
		return msg + "💡 _Tapez \"recherche\" pour trouver d'autres pneus_"
	}
	return msg + "💡 _Tapez \"panier\" pour vérifier, puis \"commander\"_"
}

func ordersMessage(orders []session.OrderView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📦 *VOS COMMANDES* (%d)\n\n", len(orders))
	for i, o := range orders {
		fmt.Fprintf(&b, "*%d. %s*\n%s | %s\n%s\n\n", i+1, o.OrderNumber, statusLabel(o.Status),
			model.FormatEuro(model.WithVAT(o.TotalAmount)), frDate(o))
	}
	b.WriteString("💡 _Tapez le numéro pour voir les détails_")
	return b.String()
}

func orderDetailMessage(o *model.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📦 *COMMANDE %s*\n\n", o.OrderNumber)
	fmt.Fprintf(&b, "*Statut:* %s\n", statusLabel(o.Status))
	fmt.Fprintf(&b, "*Date:* %s\n\n", o.CreatedAt.Format("02/01/2006"))
	b.WriteString("*Articles:*\n")
	for _, it := range o.Items {
		fmt.Fprintf(&b, "• %s %s x%d\n", it.Brand, it.Model, it.Quantity)
	}
	fmt.Fprintf(&b, "\n*Total TTC:* %s\n\n", model.FormatEuro(model.WithVAT(o.TotalAmount)))
	if o.Status.PickupAllowed() {
		b.WriteString("🎫 _Tapez \"qr\" pour le QR Code_\n\n")
	}
	b.WriteString("💡 _Tapez \"commandes\" pour revenir_")
	return b.String()
}

func pickupCodeMessage(o *model.Order) string {
	return fmt.Sprintf("🎫 *QR CODE DE RETRAIT*\n\n📦 Commande: %s\n\nPrésentez ce code à l'entrepôt.", o.OrderNumber)
}

func frDate(o session.OrderView) string {
	return o.CreatedAt.Format("02/01/2006")
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
